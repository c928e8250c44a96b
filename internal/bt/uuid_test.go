package bt

import "testing"

func TestParseUUID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "16-bit with prefix", input: "0x1101", want: "00001101-0000-1000-8000-00805f9b34fb"},
		{name: "16-bit bare", input: "180d", want: "0000180d-0000-1000-8000-00805f9b34fb"},
		{name: "32-bit", input: "0001180D", want: "0001180d-0000-1000-8000-00805f9b34fb"},
		{name: "canonical", input: "19B10000-E8F2-537E-4F6C-D104768A1214", want: "19b10000-e8f2-537e-4f6c-d104768a1214"},
		{name: "undashed", input: "19b10000e8f2537e4f6cd104768a1214", want: "19b10000-e8f2-537e-4f6c-d104768a1214"},
		{name: "misplaced dashes", input: "19b1000-0e8f2-537e-4f6c-d104768a1214", wantErr: true},
		{name: "not hex", input: "zzzz", wantErr: true},
		{name: "wrong length", input: "12345", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseUUID(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseUUID(%q) expected error, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseUUID(%q) error = %v", tt.input, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseUUID(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestUUIDIsBluetoothBase(t *testing.T) {
	if !SerialPort.IsBluetoothBase() {
		t.Error("SerialPort should be base-derived")
	}
	short, ok := SerialPort.Short()
	if !ok || short != 0x1101 {
		t.Errorf("SerialPort.Short() = %#x, %v; want 0x1101, true", short, ok)
	}

	custom := MustParseUUID("19b10000-e8f2-537e-4f6c-d104768a1214")
	if custom.IsBluetoothBase() {
		t.Error("vendor UUID should not be base-derived")
	}
	if _, ok := custom.Short(); ok {
		t.Error("vendor UUID should have no short form")
	}
}

func TestWellKnownName(t *testing.T) {
	if got := SerialPort.WellKnownName(); got != "Serial Port" {
		t.Errorf("SerialPort.WellKnownName() = %q", got)
	}
	if got := MustParseUUID("0x180F").WellKnownName(); got != "Battery" {
		t.Errorf("battery name = %q", got)
	}
	custom := MustParseUUID("6e400001-b5a3-f393-e0a9-e50e24dcca9e")
	if got := custom.WellKnownName(); got != "" {
		t.Errorf("custom uuid name = %q, want empty", got)
	}
}
