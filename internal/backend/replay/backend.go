package replay

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/btscout/internal/bt"
	"github.com/muurk/btscout/internal/logging"
)

var (
	errAlreadyScanning = errors.New("scan already running")
	errQueryCanceled   = errors.New("service query canceled")
	errScanAborted     = errors.New("scripted scan failure")
)

// Backend plays a Scenario back in real time. Scripted events are posted
// from timer goroutines.
type Backend struct {
	script *script

	mu      sync.Mutex
	sink    bt.Sink
	adapter bt.AdapterInfo
	scans   map[bt.Method]*run
	queries map[bt.Address]*run
	closed  bool
}

// run is one scripted operation whose timers die together.
type run struct {
	mu      sync.Mutex
	timers  []*time.Timer
	stopped bool
}

func (r *run) after(d time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.timers = append(r.timers, time.AfterFunc(d, func() {
		if r.live() {
			fn()
		}
	}))
}

func (r *run) live() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.stopped
}

func (r *run) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	for _, t := range r.timers {
		t.Stop()
	}
	r.timers = nil
}

// New returns a backend playing sc.
func New(sc *Scenario) (*Backend, error) {
	s, err := sc.compile()
	if err != nil {
		return nil, err
	}
	return &Backend{
		script:  s,
		adapter: s.adapter,
		scans:   make(map[bt.Method]*run, 2),
		queries: make(map[bt.Address]*run),
	}, nil
}

// Open loads the scenario at path.
func Open(path string) (*Backend, error) {
	sc, err := Load(path)
	if err != nil {
		return nil, err
	}
	return New(sc)
}

func (b *Backend) Name() string { return "replay" }

func (b *Backend) Adapter() bt.AdapterInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.adapter
}

// SetPowered flips the simulated adapter power. Running scans fail the way a
// real stack reports a radio switched off underneath them.
func (b *Backend) SetPowered(on bool) {
	b.mu.Lock()
	b.adapter.Powered = on
	var failed []bt.Method
	if !on {
		for m, r := range b.scans {
			r.stop()
			delete(b.scans, m)
			failed = append(failed, m)
		}
	}
	b.mu.Unlock()

	for _, m := range failed {
		b.postAsync(bt.ScanFailed(m, bt.NewError(bt.KindPoweredOff, "scan", nil)))
	}
}

func (b *Backend) SupportedMethods() bt.Method { return b.script.methods }

func (b *Backend) Attach(sink bt.Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sink = sink
}

func (b *Backend) StartClassicScan() error   { return b.startScan(bt.MethodClassic) }
func (b *Backend) StopClassicScan() error    { return b.stopScan(bt.MethodClassic) }
func (b *Backend) StartLowEnergyScan() error { return b.startScan(bt.MethodLowEnergy) }
func (b *Backend) StopLowEnergyScan() error  { return b.stopScan(bt.MethodLowEnergy) }

func (b *Backend) startScan(m bt.Method) error {
	op := fmt.Sprintf("start %s scan", m)
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case b.closed:
		return bt.NewError(bt.KindInputOutput, op, errors.New("backend closed"))
	case !b.adapter.Valid:
		return bt.NewError(bt.KindInvalidAdapter, op, nil)
	case !b.adapter.Powered:
		return bt.NewError(bt.KindPoweredOff, op, nil)
	case !b.script.methods.Has(m):
		return bt.NewError(bt.KindUnsupportedMethod, op, nil)
	case b.scans[m] != nil:
		// A re-issued start on a running inquiry is absorbed, like a
		// platform that was merely slow to confirm.
		if m == bt.MethodClassic {
			return nil
		}
		return bt.NewError(bt.KindInputOutput, op, errAlreadyScanning)
	}

	plan := b.script.scans[m]
	if plan.rejectStart {
		return bt.NewError(bt.KindInputOutput, op, errors.New("scripted rejection"))
	}

	r := &run{}
	b.scans[m] = r
	logging.Debug("Replay scan started", zap.Stringer("method", m), zap.Int("sightings", len(plan.sightings)))

	if !plan.unconfirmed {
		r.after(plan.startDelay, func() { b.post(bt.ScanStarted(m)) })
	}
	for _, s := range plan.sightings {
		b.scheduleSighting(r, s, plan.startDelay+s.at)
	}
	if plan.failAfter > 0 {
		r.after(plan.startDelay+plan.failAfter, func() { b.endScan(m, r, errScanAborted) })
	}
	if plan.duration > 0 {
		r.after(plan.startDelay+plan.duration, func() { b.endScan(m, r, nil) })
	}
	return nil
}

func (b *Backend) scheduleSighting(r *run, s sighting, at time.Duration) {
	r.after(at, func() {
		b.post(bt.DeviceFound(s.device.Clone()))
		if s.every > 0 {
			b.scheduleSighting(r, s, s.every)
		}
	})
}

// endScan finishes a scan on its own schedule.
func (b *Backend) endScan(m bt.Method, r *run, err error) {
	b.mu.Lock()
	if b.scans[m] != r {
		b.mu.Unlock()
		return
	}
	delete(b.scans, m)
	b.mu.Unlock()
	r.stop()

	if err != nil {
		b.post(bt.ScanFailed(m, bt.NewError(bt.KindInputOutput, fmt.Sprintf("%s scan", m), err)))
		return
	}
	b.post(bt.ScanFinished(m))
}

func (b *Backend) stopScan(m bt.Method) error {
	b.mu.Lock()
	r := b.scans[m]
	delete(b.scans, m)
	b.mu.Unlock()

	if r == nil {
		return nil
	}
	r.stop()
	b.postAsync(bt.ScanFinished(m))
	return nil
}

func (b *Backend) QueryServicesMinimal(addr bt.Address) ([]bt.UUID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	spec, ok := b.script.services[addr]
	if !ok {
		return nil, nil
	}
	if spec.err != nil {
		return nil, spec.err
	}
	return append([]bt.UUID(nil), spec.cached...), nil
}

func (b *Backend) QueryServicesFull(addr bt.Address) error {
	const op = "query services"
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return bt.NewDeviceError(bt.KindInputOutput, op, addr, errors.New("backend closed"))
	}
	if !b.adapter.Powered {
		return bt.NewDeviceError(bt.KindPoweredOff, op, addr, nil)
	}
	if old := b.queries[addr]; old != nil {
		old.stop()
	}

	spec := b.script.services[addr]
	if spec.reject {
		return bt.NewDeviceError(bt.KindInputOutput, op, addr, errors.New("scripted rejection"))
	}

	r := &run{}
	b.queries[addr] = r
	r.after(spec.delay, func() {
		for _, rec := range spec.records {
			b.post(bt.ServiceFound(addr, rec.Clone()))
		}
		if len(spec.results) == 0 {
			b.finishQuery(addr, r, spec.err)
		}
	})
	for i, uuids := range spec.results {
		uuids := uuids
		at := spec.delay + time.Duration(i)*spec.resultGap
		last := i == len(spec.results)-1
		r.after(at, func() {
			b.post(bt.ServiceResult(addr, uuids))
			if last {
				b.forgetQuery(addr, r)
			}
		})
	}
	return nil
}

func (b *Backend) finishQuery(addr bt.Address, r *run, err error) {
	if !b.forgetQuery(addr, r) {
		return
	}
	b.post(bt.ServiceQueryFinished(addr, err))
}

func (b *Backend) forgetQuery(addr bt.Address, r *run) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.queries[addr] != r {
		return false
	}
	delete(b.queries, addr)
	return true
}

func (b *Backend) CancelServiceQuery(addr bt.Address) error {
	b.mu.Lock()
	r := b.queries[addr]
	delete(b.queries, addr)
	b.mu.Unlock()

	if r == nil {
		return bt.NewDeviceError(bt.KindInputOutput, "cancel service query", addr, errors.New("no query running"))
	}
	r.stop()
	b.postAsync(bt.ServiceQueryFinished(addr, errQueryCanceled))
	return nil
}

// Close stops every scripted operation.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for m, r := range b.scans {
		r.stop()
		delete(b.scans, m)
	}
	for a, r := range b.queries {
		r.stop()
		delete(b.queries, a)
	}
	return nil
}

func (b *Backend) post(ev bt.Event) {
	b.mu.Lock()
	sink := b.sink
	b.mu.Unlock()
	if sink == nil {
		return
	}
	sink.Post(ev)
}

// postAsync delivers an acknowledgment without blocking the caller, which is
// the engine goroutine.
func (b *Backend) postAsync(ev bt.Event) {
	go b.post(ev)
}
