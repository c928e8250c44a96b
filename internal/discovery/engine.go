package discovery

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/btscout/internal/bt"
	"github.com/muurk/btscout/internal/logging"
)

// Engine runs a DeviceSession and a ServiceSession over one backend on a
// private goroutine. Its methods are safe for concurrent use.
//
// Session events are delivered on Events. The channel is buffered but not
// lossy: a consumer that stops reading stalls the engine.
type Engine struct {
	backend bt.Backend
	cfg     Config
	loop    *Loop

	devices  *DeviceSession
	services *ServiceSession

	events  chan Event
	running chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewEngine builds an engine. Call Run to start it.
func NewEngine(backend bt.Backend, cfg Config) *Engine {
	cfg = cfg.normalized()
	e := &Engine{
		backend: backend,
		cfg:     cfg,
		loop:    NewLoop(cfg.EventBuffer),
		events:  make(chan Event, cfg.EventBuffer),
		running: make(chan struct{}),
		stopped: make(chan struct{}),
	}
	sched := NewLoopScheduler(e.loop)
	e.devices = NewDeviceSession(backend, sched, cfg, e.forward)
	e.services = NewServiceSession(backend, sched, cfg, e.forward)
	e.services.SetDeviceLookup(e.devices.Device)
	return e
}

// Run attaches to the backend and processes work until ctx is canceled.
// Events is closed when Run returns.
func (e *Engine) Run(ctx context.Context) error {
	started := false
	e.once.Do(func() { started = true })
	if !started {
		return ErrLoopStopped
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		close(e.stopped)
	}()

	e.backend.Attach(bt.SinkFunc(e.post))
	logging.Info("Discovery engine running", zap.String("backend", e.backend.Name()))
	close(e.running)

	err := e.loop.Run(ctx)
	close(e.events)
	logging.Debug("Discovery engine stopped", zap.Error(err))
	return err
}

// Events returns the session event stream.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Backend returns the backend the engine drives.
func (e *Engine) Backend() bt.Backend {
	return e.backend
}

// Config returns the normalized configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// StartDevices starts device discovery over methods.
func (e *Engine) StartDevices(ctx context.Context, methods bt.Method) error {
	var err error
	if cerr := e.call(ctx, func() { err = e.devices.Start(methods) }); cerr != nil {
		return cerr
	}
	return err
}

// StopDevices requests cancellation of device discovery.
func (e *Engine) StopDevices(ctx context.Context) error {
	return e.call(ctx, e.devices.Stop)
}

// Devices returns the records of the current or last device run.
func (e *Engine) Devices(ctx context.Context) ([]bt.DeviceRecord, error) {
	var out []bt.DeviceRecord
	err := e.call(ctx, func() { out = e.devices.Devices() })
	return out, err
}

// DevicesActive reports whether device discovery is running.
func (e *Engine) DevicesActive(ctx context.Context) (bool, error) {
	var active bool
	err := e.call(ctx, func() { active = e.devices.Active() })
	return active, err
}

// StartServices starts service discovery.
func (e *Engine) StartServices(ctx context.Context, req ServiceRequest) error {
	var err error
	if cerr := e.call(ctx, func() { err = e.services.Start(req) }); cerr != nil {
		return cerr
	}
	return err
}

// StopServices requests cancellation of service discovery.
func (e *Engine) StopServices(ctx context.Context) error {
	return e.call(ctx, e.services.Stop)
}

// Services returns the records of the current or last service run.
func (e *Engine) Services(ctx context.Context) ([]bt.ServiceRecord, error) {
	var out []bt.ServiceRecord
	err := e.call(ctx, func() { out = e.services.Services() })
	return out, err
}

// ServicesActive reports whether service discovery is running.
func (e *Engine) ServicesActive(ctx context.Context) (bool, error) {
	var active bool
	err := e.call(ctx, func() { active = e.services.Active() })
	return active, err
}

// call waits for Run to start and then executes fn on the loop.
func (e *Engine) call(ctx context.Context, fn func()) error {
	select {
	case <-e.running:
	case <-ctx.Done():
		return ctx.Err()
	}
	return e.loop.Call(ctx, fn)
}

// post is the backend sink. It may be called from any goroutine.
func (e *Engine) post(ev bt.Event) {
	if ev.Kind == bt.EventDeviceFound {
		for _, id := range ev.Device.SortedManufacturerIDs() {
			logging.LogAdvertisement(ev.Device.Address.String(), id, ev.Device.ManufacturerData[id])
		}
	}
	if !e.loop.Post(func() { e.dispatch(ev) }) {
		logging.Debug("Dropping backend event after shutdown", zap.Stringer("kind", ev.Kind))
	}
}

func (e *Engine) dispatch(ev bt.Event) {
	e.devices.HandleBackendEvent(ev)
	e.services.HandleBackendEvent(ev)
}

// forward runs on the loop goroutine.
func (e *Engine) forward(ev Event) {
	select {
	case e.events <- ev:
	case <-e.stopped:
	}
}
