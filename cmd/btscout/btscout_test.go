package main

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/muurk/btscout/internal/backend/replay"
	"github.com/muurk/btscout/internal/bt"
	"github.com/muurk/btscout/internal/config"
	"github.com/muurk/btscout/internal/discovery"
	"github.com/muurk/btscout/internal/server"
)

func TestBackendFor(t *testing.T) {
	s := config.NewSettings()
	want := "tinyble"
	if runtime.GOOS == "linux" {
		want = "bluez"
	}
	if got := backendFor(s); got != want {
		t.Errorf("backendFor(default) = %q, want %q", got, want)
	}
	s.Backend = "replay"
	if got := backendFor(s); got != "replay" {
		t.Errorf("backendFor(replay) = %q", got)
	}
}

func TestSortDevices(t *testing.T) {
	a := bt.DeviceRecord{Address: bt.MustParseAddress("00:00:00:00:00:01")}
	b := bt.DeviceRecord{Address: bt.MustParseAddress("00:00:00:00:00:02"), RSSI: -80, HasRSSI: true}
	c := bt.DeviceRecord{Address: bt.MustParseAddress("00:00:00:00:00:03"), RSSI: -40, HasRSSI: true}
	d := bt.DeviceRecord{Address: bt.MustParseAddress("00:00:00:00:00:00")}

	devices := []bt.DeviceRecord{a, b, c, d}
	sortDevices(devices)

	var got []string
	for _, dev := range devices {
		got = append(got, dev.Address.String()[15:])
	}
	if strings.Join(got, ",") != "03,02,00,01" {
		t.Errorf("order = %v, want strongest first then unmeasured by address", got)
	}
}

func TestServiceRequest(t *testing.T) {
	settings = config.NewSettings()
	settings.Discovery.Methods = "le"
	defer func() { serviceMode, serviceUUIDs, settings = "minimal", nil, nil }()

	tests := []struct {
		name    string
		mode    string
		uuids   []string
		args    []string
		wantErr bool
	}{
		{name: "defaults"},
		{name: "full with targets", mode: "full", args: []string{"00:11:22:33:44:55", "66:77:88:99:AA:BB"}, uuids: []string{"1101"}},
		{name: "bad mode", mode: "deep", wantErr: true},
		{name: "bad address", args: []string{"nope"}, wantErr: true},
		{name: "bad uuid", uuids: []string{"xyz"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			serviceMode, serviceUUIDs = tt.mode, tt.uuids
			req, err := serviceRequest(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("serviceRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(req.Devices) != len(tt.args) || len(req.UUIDFilter) != len(tt.uuids) {
				t.Errorf("req = %+v", req)
			}
			if req.DeviceMethods != bt.MethodLowEnergy {
				t.Errorf("DeviceMethods = %v, want le from settings", req.DeviceMethods)
			}
			if tt.mode == "full" && req.Mode != discovery.ModeFull {
				t.Errorf("Mode = %v, want full", req.Mode)
			}
		})
	}
}

func TestMessageLine(t *testing.T) {
	rssi := int16(-63)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name string
		msg  server.Message
		want []string
	}{
		{
			name: "discovered",
			msg: server.Message{Type: "device_discovered", Scope: "devices", Time: at,
				Device: &server.DeviceInfo{Address: "00:11:22:33:44:55", Name: "Tag", RSSI: &rssi}},
			want: []string{"devices", "00:11:22:33:44:55", "Tag", "-63 dBm"},
		},
		{
			name: "updated",
			msg: server.Message{Type: "device_updated", Scope: "devices", Time: at, Fields: []string{"rssi"},
				Device: &server.DeviceInfo{Address: "00:11:22:33:44:55"}},
			want: []string{"[rssi]"},
		},
		{
			name: "service",
			msg: server.Message{Type: "service_discovered", Scope: "services", Time: at,
				Service: &server.ServiceInfo{Device: "Printer", Name: "Serial Port"}},
			want: []string{"Printer", "Serial Port"},
		},
		{
			name: "error",
			msg: server.Message{Type: "error", Scope: "devices", Time: at,
				Error: &server.ErrorInfo{Kind: "Powered Off", Message: "adapter off"}},
			want: []string{"Powered Off", "adapter off"},
		},
		{
			name: "finished",
			msg:  server.Message{Type: "finished", Scope: "devices", Time: at},
			want: []string{"finished"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := messageLine(tt.msg)
			for _, w := range tt.want {
				if !strings.Contains(line, w) {
					t.Errorf("messageLine() = %q, missing %q", line, w)
				}
			}
		})
	}
}

const loopScenario = `
name: loop
adapter:
  address: "00:1A:7D:DA:71:13"
methods: classic
classic:
  start_delay: 10ms
  duration: 60ms
  sightings:
    - at: 20ms
      address: "AA:BB:CC:DD:EE:01"
      name: beacon
      rssi: -50
`

func TestSuperviseRestartsFinishedRuns(t *testing.T) {
	old := restartDelay
	restartDelay = 20 * time.Millisecond
	defer func() { restartDelay = old }()

	sc, err := replay.Parse([]byte(loopScenario))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	be, err := replay.New(sc)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer be.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	eng := discovery.NewEngine(be, discovery.DefaultConfig())
	go func() { _ = eng.Run(ctx) }()

	out := make(chan discovery.Event, 16)
	done := make(chan error, 1)
	go func() { done <- supervise(ctx, eng, bt.MethodClassic, out) }()

	sessions := map[string]bool{}
	for len(sessions) < 2 {
		select {
		case ev := <-out:
			if ev.Type == discovery.DeviceDiscovered {
				sessions[ev.Session] = true
			}
		case <-ctx.Done():
			t.Fatalf("saw %d runs before timeout, want 2", len(sessions))
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("supervise() error = %v", err)
	}
}
