package remote

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/muurk/btscout/internal/bt"
	"github.com/muurk/btscout/internal/discovery"
	"github.com/muurk/btscout/internal/server"
)

func TestEventsURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"kitchen.local", "ws://kitchen.local:8765/events", false},
		{"192.168.1.10:9000", "ws://192.168.1.10:9000/events", false},
		{"ws://host:1234", "ws://host:1234/events", false},
		{"ws://host:1234/custom", "ws://host:1234/custom", false},
		{":9000", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := EventsURL(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("EventsURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("EventsURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClientStream(t *testing.T) {
	srv := server.New(server.Config{Instance: "test"}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+server.EventsPath)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	for srv.Hub().Clients() == 0 {
		if ctx.Err() != nil {
			t.Fatal("client never registered with the hub")
		}
		time.Sleep(5 * time.Millisecond)
	}

	srv.Hub().Publish(discovery.Event{
		Type:   discovery.DeviceDiscovered,
		Device: bt.DeviceRecord{Address: bt.MustParseAddress("AA:BB:CC:DD:EE:01")},
	})
	srv.Hub().Publish(discovery.Event{Type: discovery.Finished})

	var got []string
	streamCtx, stop := context.WithCancel(ctx)
	err = client.Stream(streamCtx, func(m server.Message) {
		got = append(got, m.Type)
		if m.Type == "finished" {
			stop()
		}
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if strings.Join(got, ",") != "device_discovered,finished" {
		t.Errorf("messages = %v", got)
	}
}

func TestDialFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := Dial(ctx, "ws://127.0.0.1:1/events"); err == nil {
		t.Error("Dial() to a closed port should fail")
	}
}
