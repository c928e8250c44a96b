package server

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/muurk/btscout/internal/bt"
	"github.com/muurk/btscout/internal/discovery"
)

// Message is the JSON form of a discovery event on the wire.
type Message struct {
	Type    string       `json:"type"`
	Scope   string       `json:"scope"`
	Session string       `json:"session,omitempty"`
	Time    time.Time    `json:"time"`
	Device  *DeviceInfo  `json:"device,omitempty"`
	Fields  []string     `json:"fields,omitempty"`
	Service *ServiceInfo `json:"service,omitempty"`
	Error   *ErrorInfo   `json:"error,omitempty"`
}

// DeviceInfo is a device record flattened for JSON. Manufacturer ids are
// rendered as "0x004C" and payloads as lower-case hex.
type DeviceInfo struct {
	Address          string            `json:"address"`
	Name             string            `json:"name,omitempty"`
	RSSI             *int16            `json:"rssi,omitempty"`
	Class            uint32            `json:"class,omitempty"`
	Core             string            `json:"core"`
	ManufacturerData map[string]string `json:"manufacturer_data,omitempty"`
	ServiceData      map[string]string `json:"service_data,omitempty"`
	ServiceUUIDs     []string          `json:"service_uuids,omitempty"`
	Cached           bool              `json:"cached,omitempty"`
}

type ServiceInfo struct {
	Device      string   `json:"device"`
	Name        string   `json:"name"`
	ServiceUUID string   `json:"service_uuid,omitempty"`
	Classes     []string `json:"classes,omitempty"`
	Channel     int      `json:"channel,omitempty"`
}

type ErrorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// NewMessage converts ev. Only the payload relevant to ev.Type is set.
func NewMessage(ev discovery.Event, at time.Time) Message {
	m := Message{
		Type:    ev.Type.String(),
		Scope:   ev.Scope.String(),
		Session: ev.Session,
		Time:    at.UTC(),
	}
	switch ev.Type {
	case discovery.DeviceDiscovered:
		d := NewDeviceInfo(ev.Device)
		m.Device = &d
	case discovery.DeviceUpdated:
		d := NewDeviceInfo(ev.Device)
		m.Device = &d
		if ev.Fields != bt.FieldNone {
			m.Fields = strings.Split(ev.Fields.String(), "|")
		}
	case discovery.ServiceDiscovered:
		s := NewServiceInfo(ev.Service)
		m.Service = &s
	case discovery.ErrorOccurred:
		if ev.Err != nil {
			m.Error = &ErrorInfo{Kind: bt.KindOf(ev.Err).String(), Message: ev.Err.Error()}
		}
	}
	return m
}

func NewDeviceInfo(d bt.DeviceRecord) DeviceInfo {
	info := DeviceInfo{
		Address: d.Address.String(),
		Name:    d.Name,
		Class:   uint32(d.Class),
		Core:    d.CoreConfigurations.String(),
		Cached:  d.Cached,
	}
	if d.HasRSSI {
		rssi := d.RSSI
		info.RSSI = &rssi
	}
	if len(d.ManufacturerData) > 0 {
		info.ManufacturerData = make(map[string]string, len(d.ManufacturerData))
		for id, data := range d.ManufacturerData {
			info.ManufacturerData[fmt.Sprintf("0x%04X", id)] = fmt.Sprintf("%x", data)
		}
	}
	if len(d.ServiceData) > 0 {
		info.ServiceData = make(map[string]string, len(d.ServiceData))
		for u, data := range d.ServiceData {
			info.ServiceData[u.String()] = fmt.Sprintf("%x", data)
		}
	}
	for _, u := range d.ServiceUUIDs {
		info.ServiceUUIDs = append(info.ServiceUUIDs, u.String())
	}
	sort.Strings(info.ServiceUUIDs)
	return info
}

func NewServiceInfo(s bt.ServiceRecord) ServiceInfo {
	info := ServiceInfo{
		Device:  s.Device.Address.String(),
		Name:    s.DisplayName(),
		Channel: s.ServerChannel(),
	}
	if u, ok := s.ServiceUUID(); ok {
		info.ServiceUUID = u.String()
	}
	for _, u := range s.ClassUUIDs() {
		info.Classes = append(info.Classes, u.String())
	}
	if info.Channel < 0 {
		info.Channel = 0
	}
	return info
}
