package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/muurk/btscout/internal/bt"
	"github.com/muurk/btscout/internal/discovery"
)

func TestTroubleshooting(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"powered off", bt.NewError(bt.KindPoweredOff, "start", nil), "bluetoothctl power on"},
		{"invalid adapter", bt.NewError(bt.KindInvalidAdapter, "open", nil), "bluetoothctl list"},
		{"unsupported", bt.NewError(bt.KindUnsupportedMethod, "start", nil), "--methods le"},
		{"permissions", bt.NewError(bt.KindMissingPermissions, "start", nil), "bluetooth group"},
		{"io", bt.NewError(bt.KindInputOutput, "query", nil), "discoverable"},
		{"plain", errors.New("boom"), "--log-level debug"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tips := Troubleshooting(tt.err)
			if tt.want == "" {
				if tips != nil {
					t.Errorf("Troubleshooting() = %v, want nil", tips)
				}
				return
			}
			if !strings.Contains(strings.Join(tips, "\n"), tt.want) {
				t.Errorf("Troubleshooting() = %v, want a tip containing %q", tips, tt.want)
			}
		})
	}
}

func TestHeaderRenderKeepsParamOrder(t *testing.T) {
	out := NewHeader("Device scan", "btscout scan",
		Param{Key: "Backend", Value: "replay"},
		Param{Key: "Methods", Value: "classic|le"},
	).SetWidth(80).Render()

	if !strings.Contains(out, "DEVICE SCAN") {
		t.Errorf("header missing upper-cased title:\n%s", out)
	}
	b, m := strings.Index(out, "replay"), strings.Index(out, "classic|le")
	if b < 0 || m < 0 || b > m {
		t.Errorf("params out of order:\n%s", out)
	}
}

func TestFailureResultUsesKindTips(t *testing.T) {
	err := bt.NewError(bt.KindPoweredOff, "start classic scan", nil)
	out := NewFailureResult("Device scan failed", err).SetWidth(100).Render()

	for _, want := range []string{"FAILED", "Device scan failed", "Powered Off", "Troubleshooting:"} {
		if !strings.Contains(out, want) {
			t.Errorf("failure box missing %q:\n%s", want, out)
		}
	}
}

func TestRenderDeviceTable(t *testing.T) {
	known := bt.MustParseAddress("00:11:22:33:44:55")
	devices := []bt.DeviceRecord{
		{Address: known, Name: "Speaker", RSSI: -52, HasRSSI: true, CoreConfigurations: bt.CoreClassic, Class: 0x240404},
		{Address: bt.MustParseAddress("66:77:88:99:AA:BB"), Cached: true, CoreConfigurations: bt.CoreLowEnergy,
			ServiceUUIDs: []bt.UUID{bt.UUID16(0x180F)}},
	}
	nick := func(a bt.Address) string {
		if a == known {
			return "Kitchen"
		}
		return ""
	}

	out := RenderDeviceTable(devices, nick)
	for _, want := range []string{"Address", "Kitchen (Speaker)", "-52 dBm", "0x240404", "[cached]", "66:77:88:99:AA:BB"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestListUUIDs(t *testing.T) {
	tests := []struct {
		name  string
		uuids []bt.UUID
		want  string
	}{
		{"empty", nil, "-"},
		{"two", []bt.UUID{bt.UUID16(0x1800), bt.UUID16(0x1801)}, ", "},
		{"capped", []bt.UUID{bt.UUID16(1), bt.UUID16(2), bt.UUID16(3), bt.UUID16(4), bt.UUID16(5)}, "+2 more"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := listUUIDs(tt.uuids); !strings.Contains(got, tt.want) {
				t.Errorf("listUUIDs() = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestPrinterEventLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	dev := bt.DeviceRecord{Address: bt.MustParseAddress("00:11:22:33:44:55"), Name: "Watch", RSSI: -70, HasRSSI: true}

	p.PrintEvent(discovery.Event{Type: discovery.DeviceDiscovered, Device: dev})
	p.PrintEvent(discovery.Event{Type: discovery.DeviceUpdated, Device: dev, Fields: bt.FieldRSSI})
	p.PrintEvent(discovery.Event{Type: discovery.Finished})
	p.PrintEvent(discovery.Event{Type: discovery.ErrorOccurred, Err: errors.New("radio fell over")})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3 (Finished prints nothing):\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "Watch") || !strings.Contains(lines[0], "-70 dBm") {
		t.Errorf("discovered line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "rssi") {
		t.Errorf("updated line = %q, want the changed fields", lines[1])
	}
	if !strings.Contains(lines[2], "radio fell over") {
		t.Errorf("error line = %q", lines[2])
	}
}

func TestPrinterEmptyTables(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.PrintDevices(nil)
	p.PrintServices(nil)
	if !strings.Contains(buf.String(), "No devices found") || !strings.Contains(buf.String(), "No services found") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}
