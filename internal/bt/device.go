package bt

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
)

// Method is a set of device discovery methods.
type Method uint8

const (
	MethodClassic Method = 1 << iota
	MethodLowEnergy

	MethodNone Method = 0
	MethodBoth        = MethodClassic | MethodLowEnergy
)

// Has reports whether m includes all of other.
func (m Method) Has(other Method) bool {
	return other != 0 && m&other == other
}

// String returns a human readable form such as "classic+le".
func (m Method) String() string {
	switch m {
	case MethodNone:
		return "none"
	case MethodClassic:
		return "classic"
	case MethodLowEnergy:
		return "le"
	case MethodBoth:
		return "classic+le"
	default:
		return fmt.Sprintf("Method(%d)", uint8(m))
	}
}

// ParseMethods parses a comma separated list: "classic", "le", "both".
func ParseMethods(s string) (Method, error) {
	var m Method
	for _, part := range strings.Split(s, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "classic", "bredr", "br/edr":
			m |= MethodClassic
		case "le", "lowenergy", "low-energy", "ble":
			m |= MethodLowEnergy
		case "both", "all":
			m |= MethodBoth
		case "":
		default:
			return MethodNone, fmt.Errorf("unknown discovery method %q", part)
		}
	}
	return m, nil
}

// CoreConfiguration tells over which radio mode(s) a device was observed.
type CoreConfiguration uint8

const (
	CoreUnknown   CoreConfiguration = 0
	CoreClassic   CoreConfiguration = 1 << 0
	CoreLowEnergy CoreConfiguration = 1 << 1
	CoreBoth                        = CoreClassic | CoreLowEnergy
)

func (c CoreConfiguration) String() string {
	switch c {
	case CoreUnknown:
		return "unknown"
	case CoreClassic:
		return "classic"
	case CoreLowEnergy:
		return "le"
	case CoreBoth:
		return "classic+le"
	default:
		return fmt.Sprintf("CoreConfiguration(%d)", uint8(c))
	}
}

// DeviceClass is the 24-bit class-of-device field.
type DeviceClass uint32

// Major returns the major device class (bits 8-12).
func (c DeviceClass) Major() uint8 { return uint8(c>>8) & 0x1F }

// Minor returns the minor device class (bits 2-7).
func (c DeviceClass) Minor() uint8 { return uint8(c>>2) & 0x3F }

// Services returns the major service class bits (bits 13-23).
func (c DeviceClass) Services() uint16 { return uint16(c>>13) & 0x7FF }

// UpdatedFields tells which fields changed in a DeviceUpdated event.
type UpdatedFields uint8

const (
	FieldRSSI UpdatedFields = 1 << iota
	FieldManufacturerData
	FieldServiceData
	FieldCoreConfigurations

	FieldNone UpdatedFields = 0
	FieldAll                = FieldRSSI | FieldManufacturerData | FieldServiceData | FieldCoreConfigurations
)

// Has reports whether f includes field.
func (f UpdatedFields) Has(field UpdatedFields) bool {
	return f&field == field
}

func (f UpdatedFields) String() string {
	if f == FieldNone {
		return "none"
	}
	var names []string
	if f.Has(FieldRSSI) {
		names = append(names, "rssi")
	}
	if f.Has(FieldManufacturerData) {
		names = append(names, "manufacturer_data")
	}
	if f.Has(FieldServiceData) {
		names = append(names, "service_data")
	}
	if f.Has(FieldCoreConfigurations) {
		names = append(names, "core_configurations")
	}
	return strings.Join(names, "|")
}

// DeviceRecord is one remote device as seen by discovery.
type DeviceRecord struct {
	Address            Address
	Name               string
	Class              DeviceClass
	RSSI               int16
	HasRSSI            bool
	ManufacturerData   map[uint16][]byte
	ServiceData        map[UUID][]byte
	ServiceUUIDs       []UUID
	CoreConfigurations CoreConfiguration
	Cached             bool
}

// Clone returns a deep copy of d.
func (d DeviceRecord) Clone() DeviceRecord {
	c := d
	if d.ManufacturerData != nil {
		c.ManufacturerData = make(map[uint16][]byte, len(d.ManufacturerData))
		for k, v := range d.ManufacturerData {
			c.ManufacturerData[k] = bytes.Clone(v)
		}
	}
	if d.ServiceData != nil {
		c.ServiceData = make(map[UUID][]byte, len(d.ServiceData))
		for k, v := range d.ServiceData {
			c.ServiceData[k] = bytes.Clone(v)
		}
	}
	if d.ServiceUUIDs != nil {
		c.ServiceUUIDs = append([]UUID(nil), d.ServiceUUIDs...)
	}
	return c
}

// DisplayName returns Name, or the address when the name is unknown.
func (d DeviceRecord) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Address.String()
}

// MergeManufacturerData inserts every entry of data, replacing the blob of a
// company id that is already present.
func (d *DeviceRecord) MergeManufacturerData(data map[uint16][]byte) {
	if len(data) == 0 {
		return
	}
	if d.ManufacturerData == nil {
		d.ManufacturerData = make(map[uint16][]byte, len(data))
	}
	for id, blob := range data {
		d.ManufacturerData[id] = bytes.Clone(blob)
	}
}

// MergeServiceData is MergeManufacturerData for service data.
func (d *DeviceRecord) MergeServiceData(data map[UUID][]byte) {
	if len(data) == 0 {
		return
	}
	if d.ServiceData == nil {
		d.ServiceData = make(map[UUID][]byte, len(data))
	}
	for id, blob := range data {
		d.ServiceData[id] = bytes.Clone(blob)
	}
}

// AddServiceUUIDs adds uuids not yet present, keeping insertion order.
func (d *DeviceRecord) AddServiceUUIDs(uuids ...UUID) {
	for _, u := range uuids {
		if !ContainsUUID(d.ServiceUUIDs, u) {
			d.ServiceUUIDs = append(d.ServiceUUIDs, u)
		}
	}
}

// Diff returns the advertisement fields of next that differ from d. A field
// absent from next (no RSSI, empty data map) never counts as a change.
func (d DeviceRecord) Diff(next DeviceRecord) UpdatedFields {
	fields := FieldNone
	if next.HasRSSI && (!d.HasRSSI || d.RSSI != next.RSSI) {
		fields |= FieldRSSI
	}
	for id, blob := range next.ManufacturerData {
		if old, ok := d.ManufacturerData[id]; !ok || !bytes.Equal(old, blob) {
			fields |= FieldManufacturerData
			break
		}
	}
	for id, blob := range next.ServiceData {
		if old, ok := d.ServiceData[id]; !ok || !bytes.Equal(old, blob) {
			fields |= FieldServiceData
			break
		}
	}
	return fields
}

// SortedManufacturerIDs returns the manufacturer company ids in ascending order.
func (d DeviceRecord) SortedManufacturerIDs() []uint16 {
	ids := make([]uint16, 0, len(d.ManufacturerData))
	for id := range d.ManufacturerData {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
