package bt

import (
	"bytes"
	"testing"
)

func TestDeviceRecordDiff(t *testing.T) {
	base := DeviceRecord{
		Address:          MustParseAddress("AA:BB:CC:DD:EE:01"),
		RSSI:             -60,
		HasRSSI:          true,
		ManufacturerData: map[uint16][]byte{0x004C: {0x01, 0x02}},
		ServiceData:      map[UUID][]byte{UUID16(0xFEAA): {0x10}},
	}

	tests := []struct {
		name string
		next DeviceRecord
		want UpdatedFields
	}{
		{
			name: "identical",
			next: base.Clone(),
			want: FieldNone,
		},
		{
			name: "rssi changed",
			next: DeviceRecord{RSSI: -55, HasRSSI: true},
			want: FieldRSSI,
		},
		{
			name: "rssi absent is not a change",
			next: DeviceRecord{},
			want: FieldNone,
		},
		{
			name: "zero rssi present differs from -60",
			next: DeviceRecord{RSSI: 0, HasRSSI: true},
			want: FieldRSSI,
		},
		{
			name: "manufacturer blob changed",
			next: DeviceRecord{ManufacturerData: map[uint16][]byte{0x004C: {0x01, 0x03}}},
			want: FieldManufacturerData,
		},
		{
			name: "new manufacturer id",
			next: DeviceRecord{ManufacturerData: map[uint16][]byte{0x0499: {0x05}}},
			want: FieldManufacturerData,
		},
		{
			name: "service data and rssi",
			next: DeviceRecord{RSSI: -70, HasRSSI: true, ServiceData: map[UUID][]byte{UUID16(0xFEAA): {0x11}}},
			want: FieldRSSI | FieldServiceData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.Diff(tt.next); got != tt.want {
				t.Errorf("Diff() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDeviceRecordRSSIAbsentWhenUnknown(t *testing.T) {
	old := DeviceRecord{}
	next := DeviceRecord{RSSI: 0, HasRSSI: true}
	if got := old.Diff(next); got != FieldRSSI {
		t.Errorf("Diff() from unknown RSSI = %v, want rssi", got)
	}
}

func TestDeviceRecordCloneIsDeep(t *testing.T) {
	orig := DeviceRecord{
		ManufacturerData: map[uint16][]byte{1: {0xAA}},
		ServiceUUIDs:     []UUID{SerialPort},
	}
	c := orig.Clone()
	c.ManufacturerData[1][0] = 0xBB
	c.ServiceUUIDs[0] = PublicBrowseGroup

	if orig.ManufacturerData[1][0] != 0xAA {
		t.Error("Clone() shares manufacturer data bytes")
	}
	if orig.ServiceUUIDs[0] != SerialPort {
		t.Error("Clone() shares service UUID slice")
	}
}

func TestMergeManufacturerDataOverwritesPerKey(t *testing.T) {
	d := DeviceRecord{ManufacturerData: map[uint16][]byte{1: {0x01}, 2: {0x02}}}
	d.MergeManufacturerData(map[uint16][]byte{2: {0x22}, 3: {0x33}})

	want := map[uint16][]byte{1: {0x01}, 2: {0x22}, 3: {0x33}}
	if len(d.ManufacturerData) != len(want) {
		t.Fatalf("len = %d, want %d", len(d.ManufacturerData), len(want))
	}
	for id, blob := range want {
		if !bytes.Equal(d.ManufacturerData[id], blob) {
			t.Errorf("ManufacturerData[%d] = %x, want %x", id, d.ManufacturerData[id], blob)
		}
	}
}

func TestParseMethods(t *testing.T) {
	tests := []struct {
		input   string
		want    Method
		wantErr bool
	}{
		{input: "classic", want: MethodClassic},
		{input: "le", want: MethodLowEnergy},
		{input: "classic,le", want: MethodBoth},
		{input: "both", want: MethodBoth},
		{input: "", want: MethodNone},
		{input: "wifi", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMethods(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMethods(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseMethods(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestDeviceClassFields(t *testing.T) {
	// 0x5A020C is a typical smartphone: major 0x02 (phone), minor 0x03.
	c := DeviceClass(0x5A020C)
	if c.Major() != 0x02 {
		t.Errorf("Major() = %#x, want 0x02", c.Major())
	}
	if c.Minor() != 0x03 {
		t.Errorf("Minor() = %#x, want 0x03", c.Minor())
	}
	if c.Services() != 0x2D0 {
		t.Errorf("Services() = %#x, want 0x2d0", c.Services())
	}
}
