package bt

import (
	"sort"
	"strings"
)

// ServiceRecord is one SDP service of a remote device. Device is a snapshot
// taken when the service was discovered.
type ServiceRecord struct {
	Device     DeviceRecord
	Attributes map[uint16]AttributeValue
}

// NewServiceRecord returns an empty record bound to a copy of device.
func NewServiceRecord(device DeviceRecord) ServiceRecord {
	return ServiceRecord{
		Device:     device.Clone(),
		Attributes: make(map[uint16]AttributeValue),
	}
}

// Attribute returns the value of attribute id.
func (s ServiceRecord) Attribute(id uint16) (AttributeValue, bool) {
	v, ok := s.Attributes[id]
	return v, ok
}

// SetAttribute stores v under id.
func (s *ServiceRecord) SetAttribute(id uint16, v AttributeValue) {
	if s.Attributes == nil {
		s.Attributes = make(map[uint16]AttributeValue)
	}
	s.Attributes[id] = v
}

// AttributeIDs returns the attribute ids in ascending order.
func (s ServiceRecord) AttributeIDs() []uint16 {
	ids := make([]uint16, 0, len(s.Attributes))
	for id := range s.Attributes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ServiceUUID returns the ServiceID attribute.
func (s ServiceRecord) ServiceUUID() (UUID, bool) {
	if v, ok := s.Attributes[AttrServiceID].(UUIDValue); ok {
		return UUID(v), true
	}
	return UUID{}, false
}

// SetServiceUUID writes the ServiceID attribute.
func (s *ServiceRecord) SetServiceUUID(u UUID) {
	s.SetAttribute(AttrServiceID, UUIDValue(u))
}

// ClassUUIDs returns the ServiceClassIDList attribute.
func (s ServiceRecord) ClassUUIDs() []UUID {
	return uuidsOf(s.Attributes[AttrServiceClassIDList])
}

// SetClassUUIDs writes the ServiceClassIDList attribute.
func (s *ServiceRecord) SetClassUUIDs(uuids ...UUID) {
	seq := make(Sequence, len(uuids))
	for i, u := range uuids {
		seq[i] = UUIDValue(u)
	}
	s.SetAttribute(AttrServiceClassIDList, seq)
}

// Name returns the ServiceName attribute.
func (s ServiceRecord) Name() string {
	if v, ok := s.Attributes[AttrServiceName].(String); ok {
		return string(v)
	}
	return ""
}

// SetName writes the ServiceName attribute.
func (s *ServiceRecord) SetName(name string) {
	s.SetAttribute(AttrServiceName, String(name))
}

// ProtocolDescriptor is one entry of the protocol descriptor list.
type ProtocolDescriptor struct {
	Protocol   UUID
	Parameters []AttributeValue
}

// ProtocolDescriptors decodes the ProtocolDescriptorList attribute. An
// Alternative list contributes its first sequence.
func (s ServiceRecord) ProtocolDescriptors() []ProtocolDescriptor {
	v := s.Attributes[AttrProtocolDescriptorList]
	if alt, ok := v.(Alternative); ok && len(alt) > 0 {
		v = alt[0]
	}
	seq, ok := v.(Sequence)
	if !ok {
		return nil
	}
	var out []ProtocolDescriptor
	for _, item := range seq {
		entry, ok := item.(Sequence)
		if !ok || len(entry) == 0 {
			continue
		}
		proto, ok := entry[0].(UUIDValue)
		if !ok {
			continue
		}
		out = append(out, ProtocolDescriptor{Protocol: UUID(proto), Parameters: entry[1:]})
	}
	return out
}

// SetRFCOMMChannel writes an L2CAP/RFCOMM protocol descriptor list.
func (s *ServiceRecord) SetRFCOMMChannel(channel uint8) {
	s.SetAttribute(AttrProtocolDescriptorList, Sequence{
		Sequence{UUIDValue(ProtocolL2CAP)},
		Sequence{UUIDValue(ProtocolRFCOMM), Uint(channel)},
	})
}

// SetL2CAPPSM writes an L2CAP-only protocol descriptor list.
func (s *ServiceRecord) SetL2CAPPSM(psm uint16) {
	s.SetAttribute(AttrProtocolDescriptorList, Sequence{
		Sequence{UUIDValue(ProtocolL2CAP), Uint(psm)},
	})
}

// ServerChannel returns the RFCOMM channel, else the L2CAP PSM, else 0.
func (s ServiceRecord) ServerChannel() int {
	psm := 0
	for _, pd := range s.ProtocolDescriptors() {
		if len(pd.Parameters) == 0 {
			continue
		}
		n, ok := pd.Parameters[0].(Uint)
		if !ok {
			continue
		}
		switch pd.Protocol {
		case ProtocolRFCOMM:
			return int(n)
		case ProtocolL2CAP:
			psm = int(n)
		}
	}
	return psm
}

// ServiceKey identifies a service for duplicate suppression.
type ServiceKey struct {
	Address       Address
	Classes       string
	ServiceUUID   UUID
	ServerChannel int
}

// Key returns the duplicate-suppression key: device address, class UUID set,
// service UUID and server channel.
func (s ServiceRecord) Key() ServiceKey {
	classes := s.ClassUUIDs()
	names := make([]string, 0, len(classes))
	for _, c := range classes {
		names = append(names, c.String())
	}
	sort.Strings(names)
	names = dedupSorted(names)
	svc, _ := s.ServiceUUID()
	return ServiceKey{
		Address:       s.Device.Address,
		Classes:       strings.Join(names, ","),
		ServiceUUID:   svc,
		ServerChannel: s.ServerChannel(),
	}
}

// MatchesAny reports whether the service UUID or any class UUID is in filter.
// An empty filter matches everything.
func (s ServiceRecord) MatchesAny(filter []UUID) bool {
	if len(filter) == 0 {
		return true
	}
	if svc, ok := s.ServiceUUID(); ok && ContainsUUID(filter, svc) {
		return true
	}
	for _, c := range s.ClassUUIDs() {
		if ContainsUUID(filter, c) {
			return true
		}
	}
	return false
}

// DisplayName returns Name, else the service UUID, else the first class UUID.
func (s ServiceRecord) DisplayName() string {
	if n := s.Name(); n != "" {
		return n
	}
	if u, ok := s.ServiceUUID(); ok {
		return u.String()
	}
	if classes := s.ClassUUIDs(); len(classes) > 0 {
		return classes[0].String()
	}
	return "unnamed service"
}

func dedupSorted(in []string) []string {
	out := in[:0]
	for i, s := range in {
		if i == 0 || s != in[i-1] {
			out = append(out, s)
		}
	}
	return out
}

// Clone returns a copy of s whose device and attribute map are not shared.
func (s ServiceRecord) Clone() ServiceRecord {
	c := ServiceRecord{Device: s.Device.Clone()}
	if s.Attributes != nil {
		c.Attributes = make(map[uint16]AttributeValue, len(s.Attributes))
		for id, v := range s.Attributes {
			c.Attributes[id] = v
		}
	}
	return c
}
