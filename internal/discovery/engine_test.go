package discovery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/muurk/btscout/internal/bt"
)

// chattyBackend answers scans from its own goroutines the way a platform
// stack would.
type chattyBackend struct {
	*fakeBackend
	mu sync.Mutex
	wg sync.WaitGroup
}

func (c *chattyBackend) Attach(sink bt.Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fakeBackend.Attach(sink)
}

func (c *chattyBackend) postLater(evs ...bt.Event) {
	c.mu.Lock()
	sink := c.sink
	c.mu.Unlock()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for _, ev := range evs {
			sink.Post(ev)
		}
	}()
}

func (c *chattyBackend) StartLowEnergyScan() error {
	if err := c.fakeBackend.StartLowEnergyScan(); err != nil {
		return err
	}
	d := sighting(addrA, -42)
	d.Name = "sensor"
	c.postLater(bt.DeviceFound(d))
	return nil
}

func (c *chattyBackend) StopLowEnergyScan() error {
	if err := c.fakeBackend.StopLowEnergyScan(); err != nil {
		return err
	}
	c.postLater(bt.ScanFinished(bt.MethodLowEnergy))
	return nil
}

func (c *chattyBackend) QueryServicesFull(addr bt.Address) error {
	if err := c.fakeBackend.QueryServicesFull(addr); err != nil {
		return err
	}
	c.postLater(
		bt.ServiceFound(addr, serviceWithClass(addr, bt.SerialPort, 5)),
		bt.ServiceQueryFinished(addr, nil),
	)
	return nil
}

func startEngine(t *testing.T, cfg Config) (*Engine, *chattyBackend, context.Context) {
	t.Helper()
	be := &chattyBackend{fakeBackend: newFakeBackend()}
	eng := NewEngine(be, cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	done := make(chan struct{})
	go func() {
		defer close(done)
		eng.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		be.wg.Wait()
	})
	return eng, be, ctx
}

func collectUntilTerminal(t *testing.T, eng *Engine, scope Scope) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-eng.Events():
			if !ok {
				t.Fatal("events closed early")
			}
			out = append(out, ev)
			if ev.Scope == scope && ev.Type.Terminal() {
				return out
			}
		case <-timeout:
			t.Fatalf("no terminal event, got %d events", len(out))
		}
	}
}

func TestEngineDeviceScanFinishes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LowEnergyTimeout = 30 * time.Millisecond
	eng, _, ctx := startEngine(t, cfg)

	if err := eng.StartDevices(ctx, bt.MethodLowEnergy); err != nil {
		t.Fatalf("StartDevices() error = %v", err)
	}
	events := collectUntilTerminal(t, eng, ScopeDevices)

	if events[0].Type != DeviceDiscovered || events[0].Device.Name != "sensor" {
		t.Errorf("first event = %v %q", events[0].Type, events[0].Device.Name)
	}
	if last := events[len(events)-1]; last.Type != Finished {
		t.Errorf("last event = %v, want finished", last.Type)
	}

	devices, err := eng.Devices(ctx)
	if err != nil || len(devices) != 1 {
		t.Fatalf("Devices() = %v, %v", devices, err)
	}
	active, err := eng.DevicesActive(ctx)
	if err != nil || active {
		t.Errorf("DevicesActive() = %v, %v", active, err)
	}
}

func TestEngineStopDevices(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LowEnergyTimeout = 0
	eng, be, ctx := startEngine(t, cfg)

	if err := eng.StartDevices(ctx, bt.MethodLowEnergy); err != nil {
		t.Fatalf("StartDevices() error = %v", err)
	}
	if err := eng.StopDevices(ctx); err != nil {
		t.Fatalf("StopDevices() error = %v", err)
	}
	events := collectUntilTerminal(t, eng, ScopeDevices)
	if last := events[len(events)-1]; last.Type != Canceled {
		t.Errorf("last event = %v, want canceled", last.Type)
	}

	var stops int
	if err := eng.loop.Call(ctx, func() { stops = be.count("stop_le") }); err != nil {
		t.Fatal(err)
	}
	if stops != 1 {
		t.Errorf("stop_le issued %d times, want 1", stops)
	}
}

func TestEngineServicesUseScannedDevice(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LowEnergyTimeout = 20 * time.Millisecond
	eng, _, ctx := startEngine(t, cfg)

	if err := eng.StartDevices(ctx, bt.MethodLowEnergy); err != nil {
		t.Fatalf("StartDevices() error = %v", err)
	}
	collectUntilTerminal(t, eng, ScopeDevices)

	req := ServiceRequest{Devices: []bt.Address{addrA}, Mode: ModeFull}
	if err := eng.StartServices(ctx, req); err != nil {
		t.Fatalf("StartServices() error = %v", err)
	}
	events := collectUntilTerminal(t, eng, ScopeServices)
	if len(events) != 2 || events[0].Type != ServiceDiscovered {
		t.Fatalf("events = %v", events)
	}
	if got := events[0].Service.Device.Name; got != "sensor" {
		t.Errorf("service device name = %q, want the scanned name", got)
	}
	services, err := eng.Services(ctx)
	if err != nil || len(services) != 1 {
		t.Fatalf("Services() = %v, %v", services, err)
	}
}

func TestEngineStartErrorsAreSynchronous(t *testing.T) {
	eng, be, ctx := startEngine(t, DefaultConfig())
	if err := eng.loop.Call(ctx, func() { be.adapter.Powered = false }); err != nil {
		t.Fatal(err)
	}
	if err := eng.StartDevices(ctx, bt.MethodBoth); !errors.Is(err, bt.ErrPoweredOff) {
		t.Errorf("StartDevices() error = %v, want powered off", err)
	}
}

func TestEngineCallBeforeRun(t *testing.T) {
	eng := NewEngine(newFakeBackend(), DefaultConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := eng.StartDevices(ctx, bt.MethodLowEnergy); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("StartDevices() error = %v, want deadline exceeded", err)
	}
}

func TestEngineRunTwice(t *testing.T) {
	eng, _, ctx := startEngine(t, DefaultConfig())
	if _, err := eng.DevicesActive(ctx); err != nil {
		t.Fatal(err)
	}
	if err := eng.Run(ctx); !errors.Is(err, ErrLoopStopped) {
		t.Errorf("second Run() error = %v, want ErrLoopStopped", err)
	}
}
