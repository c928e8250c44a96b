package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/muurk/btscout/internal/bt"
	"github.com/muurk/btscout/internal/discovery"
)

type staticSource []bt.DeviceRecord

func (s staticSource) Devices(context.Context) ([]bt.DeviceRecord, error) { return s, nil }

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + EventsPath
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("hub has %d clients, want %d", h.Clients(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEventsEndpoint(t *testing.T) {
	s := New(Config{Instance: "test"}, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	a, b := dial(t, ts), dial(t, ts)
	waitClients(t, s.Hub(), 2)

	s.Hub().Publish(discovery.Event{
		Type:    discovery.DeviceDiscovered,
		Session: "run-1",
		Device:  bt.DeviceRecord{Address: bt.MustParseAddress("AA:BB:CC:DD:EE:01"), Name: "tag"},
	})
	s.Hub().Publish(discovery.Event{Type: discovery.Finished, Session: "run-1"})

	for _, conn := range []*websocket.Conn{a, b} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var first, second Message
		if err := conn.ReadJSON(&first); err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
		if err := conn.ReadJSON(&second); err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
		if first.Type != "device_discovered" || first.Device == nil || first.Device.Name != "tag" {
			t.Errorf("first message = %+v", first)
		}
		if second.Type != "finished" || second.Session != "run-1" {
			t.Errorf("second message = %+v", second)
		}
	}

	_ = a.Close()
	waitClients(t, s.Hub(), 1)
}

func TestDevicesEndpoint(t *testing.T) {
	src := staticSource{{Address: bt.MustParseAddress("AA:BB:CC:DD:EE:02"), Name: "watch"}}
	ts := httptest.NewServer(New(Config{Instance: "test"}, src).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + DevicesPath)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var got []DeviceInfo
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != "watch" || got[0].Address != "AA:BB:CC:DD:EE:02" {
		t.Errorf("devices = %+v", got)
	}
}

func TestDevicesEndpointWithoutSource(t *testing.T) {
	ts := httptest.NewServer(New(Config{Instance: "test"}, nil).Handler())
	defer ts.Close()
	resp, err := http.Get(ts.URL + DevicesPath)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestRunStopsWhenEventsClose(t *testing.T) {
	s := New(Config{Host: "127.0.0.1", Port: 0, Instance: "test"}, nil)
	if err := s.Listen(); err != nil {
		t.Fatal(err)
	}
	events := make(chan discovery.Event)
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background(), events) }()

	close(events)
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after events closed")
	}
}
