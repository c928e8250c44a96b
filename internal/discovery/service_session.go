package discovery

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/btscout/internal/bt"
	"github.com/muurk/btscout/internal/logging"
)

// Mode selects how services are looked up.
type Mode int

const (
	// ModeMinimal reads the platform's cached UUID list without radio traffic.
	ModeMinimal Mode = iota
	// ModeFull runs a live SDP query against each device.
	ModeFull
)

func (m Mode) String() string {
	if m == ModeFull {
		return "full"
	}
	return "minimal"
}

// ParseMode parses "minimal" or "full".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "minimal":
		return ModeMinimal, nil
	case "full":
		return ModeFull, nil
	default:
		return ModeMinimal, fmt.Errorf("unknown service discovery mode %q", s)
	}
}

// ServiceRequest describes one service discovery run. With no Devices the
// session first runs a device scan over DeviceMethods and queries every
// device it finds.
type ServiceRequest struct {
	Devices       []bt.Address
	Mode          Mode
	UUIDFilter    []bt.UUID
	DeviceMethods bt.Method
}

func (r ServiceRequest) normalized() ServiceRequest {
	seen := make(map[bt.Address]bool, len(r.Devices))
	devices := make([]bt.Address, 0, len(r.Devices))
	for _, a := range r.Devices {
		if a.IsZero() || seen[a] {
			continue
		}
		seen[a] = true
		devices = append(devices, a)
	}
	r.Devices = devices
	if r.DeviceMethods == bt.MethodNone {
		r.DeviceMethods = bt.MethodClassic
	}
	return r
}

type servicePhase int

const (
	servicePhaseIdle servicePhase = iota
	servicePhaseDevices
	servicePhaseQuery
)

// DeviceLookup resolves an address to the best known device record.
type DeviceLookup func(bt.Address) (bt.DeviceRecord, bool)

// ServiceSession queries devices one at a time and reports their services.
// Like DeviceSession it must be driven from a single goroutine.
type ServiceSession struct {
	backend bt.Backend
	sched   Scheduler
	cfg     Config
	handler Handler
	lookup  DeviceLookup

	active  bool
	phase   servicePhase
	req     ServiceRequest
	pending coordinator[ServiceRequest]
	runID   string
	lastErr error

	inner    *DeviceSession
	innerErr error

	queue        []bt.Address
	singleDevice bool
	current      bt.Address
	querying     bool
	held         []bt.ServiceRecord
	holding      bool
	grace        deadline

	records []bt.ServiceRecord
	seen    map[bt.ServiceKey]struct{}
}

// NewServiceSession returns an inactive session. handler may be nil.
func NewServiceSession(backend bt.Backend, sched Scheduler, cfg Config, handler Handler) *ServiceSession {
	if handler == nil {
		handler = func(Event) {}
	}
	return &ServiceSession{
		backend: backend,
		sched:   sched,
		cfg:     cfg.normalized(),
		handler: handler,
		grace:   deadline{sched: sched},
		seen:    make(map[bt.ServiceKey]struct{}),
	}
}

// SetDeviceLookup installs a resolver used to attach device details to
// services of explicitly requested addresses.
func (s *ServiceSession) SetDeviceLookup(fn DeviceLookup) {
	s.lookup = fn
}

// Active reports whether a run is in progress or being stopped.
func (s *ServiceSession) Active() bool { return s.active }

// RunID returns the id of the current or last run.
func (s *ServiceSession) RunID() string { return s.runID }

// Err returns the error that ended the last run, if any.
func (s *ServiceSession) Err() error { return s.lastErr }

// Services returns a copy of the records reported by the current or last run.
func (s *ServiceSession) Services() []bt.ServiceRecord {
	out := make([]bt.ServiceRecord, len(s.records))
	for i, r := range s.records {
		out[i] = r.Clone()
	}
	return out
}

// Device looks addr up in the inner device scan, if one ran.
func (s *ServiceSession) Device(addr bt.Address) (bt.DeviceRecord, bool) {
	if s.inner == nil {
		return bt.DeviceRecord{}, false
	}
	return s.inner.Device(addr)
}

// Start begins a run. Adapter problems are returned synchronously. Per-device
// query failures are reported through events.
func (s *ServiceSession) Start(req ServiceRequest) error {
	req = req.normalized()
	if err := s.checkStart(req); err != nil {
		return err
	}
	if s.active {
		if s.pending.requestStart(req) {
			logging.LogSessionEvent("services", s.runID, "restart_deferred")
			return nil
		}
		logging.Debug("Service discovery already running", zap.String("session", s.runID))
		return nil
	}
	return s.begin(req)
}

// Stop cancels the run. Canceled follows once no native query is in flight.
func (s *ServiceSession) Stop() {
	if !s.active {
		return
	}
	if !s.pending.requestStop() {
		return
	}
	s.grace.stop()
	logging.LogSessionEvent("services", s.runID, "stop_requested")

	switch s.phase {
	case servicePhaseDevices:
		// The inner session reports Canceled when its stop lands.
		s.inner.Stop()
	case servicePhaseQuery:
		if !s.querying {
			s.resolvePending()
			return
		}
		if err := s.backend.CancelServiceQuery(s.current); err != nil {
			logging.Warn("Canceling service query failed, finalizing cancel",
				zap.String("session", s.runID), zap.Error(err))
			s.resolvePending()
		}
	default:
		s.resolvePending()
	}
}

// HandleBackendEvent feeds a backend event to the session.
func (s *ServiceSession) HandleBackendEvent(ev bt.Event) {
	if !s.active {
		return
	}
	if s.phase == servicePhaseDevices {
		s.inner.HandleBackendEvent(ev)
		return
	}
	switch ev.Kind {
	case bt.EventServiceFound:
		s.onServiceFound(ev.Address, ev.Service)
	case bt.EventServiceResult:
		s.onServiceResult(ev)
	case bt.EventServiceQueryFinished:
		s.onQueryFinished(ev.Address, ev.Err)
	}
}

func (s *ServiceSession) checkStart(req ServiceRequest) error {
	const op = "start service discovery"
	info := s.backend.Adapter()
	if !info.Valid {
		return bt.NewError(bt.KindInvalidAdapter, op, nil)
	}
	if !s.cfg.AdapterAddress.IsZero() && info.Address != s.cfg.AdapterAddress {
		return bt.NewError(bt.KindInvalidAdapter, op, nil)
	}
	if !info.Powered {
		return bt.NewError(bt.KindPoweredOff, op, nil)
	}
	if len(req.Devices) == 0 && !s.backend.SupportedMethods().Has(req.DeviceMethods) {
		return bt.NewError(bt.KindUnsupportedMethod, op, nil)
	}
	return nil
}

func (s *ServiceSession) begin(req ServiceRequest) error {
	s.runID = newRunID()
	s.req = req
	s.records = nil
	s.seen = make(map[bt.ServiceKey]struct{})
	s.lastErr = nil
	s.innerErr = nil
	s.singleDevice = len(req.Devices) == 1
	s.active = true
	s.pending.reset()

	logging.Info("Service discovery started",
		zap.String("session", s.runID),
		zap.Stringer("mode", req.Mode),
		zap.Int("devices", len(req.Devices)))

	if len(req.Devices) == 0 {
		s.phase = servicePhaseDevices
		s.inner = NewDeviceSession(s.backend, s.sched, s.innerConfig(), s.onInnerEvent)
		if err := s.inner.Start(req.DeviceMethods); err != nil {
			s.reset()
			s.lastErr = err
			return err
		}
		return nil
	}

	s.inner = nil
	s.phase = servicePhaseQuery
	s.queue = append([]bt.Address(nil), req.Devices...)
	s.processQueue()
	return nil
}

// innerConfig bounds the device scan that feeds the queue: a run that never
// finishes would never reach the service queries.
func (s *ServiceSession) innerConfig() Config {
	cfg := s.cfg
	if cfg.LowEnergyTimeout == 0 {
		cfg.LowEnergyTimeout = DefaultLowEnergyTimeout
	}
	return cfg
}

func (s *ServiceSession) onInnerEvent(ev Event) {
	switch ev.Type {
	case ErrorOccurred:
		s.innerErr = ev.Err
	case Canceled:
		s.resolvePending()
	case Finished:
		if s.pending.busy() {
			s.resolvePending()
			return
		}
		if s.innerErr != nil {
			s.fail(s.innerErr)
			return
		}
		devices := s.inner.Devices()
		s.queue = make([]bt.Address, 0, len(devices))
		for _, d := range devices {
			s.queue = append(s.queue, d.Address)
		}
		logging.LogSessionEvent("services", s.runID, "devices_collected", zap.Int("devices", len(s.queue)))
		s.phase = servicePhaseQuery
		s.processQueue()
	}
}

func (s *ServiceSession) processQueue() {
	for s.active && s.phase == servicePhaseQuery && !s.querying && !s.holding {
		if len(s.queue) == 0 {
			s.finish()
			return
		}
		addr := s.queue[0]
		s.current = addr

		switch s.req.Mode {
		case ModeFull:
			if err := s.backend.QueryServicesFull(addr); err != nil {
				if s.deviceFailed(addr, err) {
					return
				}
				s.queue = s.queue[1:]
				continue
			}
			s.querying = true
			logging.LogSessionEvent("services", s.runID, "query_started", zap.Stringer("device", addr))
			return
		default:
			uuids, err := s.backend.QueryServicesMinimal(addr)
			s.queue = s.queue[1:]
			if err != nil {
				if s.deviceFailed(addr, err) {
					return
				}
				continue
			}
			s.commit(synthesizeServices(s.deviceRecord(addr), uuids))
		}
	}
}

// advance drops the current device and moves to the next.
func (s *ServiceSession) advance() {
	if len(s.queue) > 0 {
		s.queue = s.queue[1:]
	}
	s.querying = false
	s.holding = false
	s.held = nil
	s.grace.stop()
	s.current = bt.Address{}
	s.processQueue()
}

// deviceFailed reports a per-device failure. It ends the run only when the
// request named a single device, and reports whether it did.
func (s *ServiceSession) deviceFailed(addr bt.Address, err error) bool {
	e := bt.Classify(err, bt.KindInputOutput, "query services")
	if e.Address.IsZero() {
		e = bt.NewDeviceError(e.Kind, e.Op, addr, e.Err)
	}
	if s.singleDevice {
		s.fail(e)
		return true
	}
	logging.Warn("Skipping device after service query failure",
		zap.String("session", s.runID), zap.Stringer("device", addr), zap.Error(err))
	return false
}

func (s *ServiceSession) isCurrent(addr bt.Address) bool {
	return s.phase == servicePhaseQuery && (s.querying || s.holding) && addr == s.current
}

func (s *ServiceSession) onServiceFound(addr bt.Address, rec bt.ServiceRecord) {
	if !s.isCurrent(addr) || s.pending.busy() {
		logging.Debug("Dropping stale service", zap.Stringer("device", addr))
		return
	}
	s.commit([]bt.ServiceRecord{s.bind(addr, rec)})
}

func (s *ServiceSession) onServiceResult(ev bt.Event) {
	if !s.isCurrent(ev.Address) {
		logging.Debug("Dropping stale service result", zap.Stringer("device", ev.Address))
		return
	}
	if s.pending.busy() {
		s.querying = false
		s.resolvePending()
		return
	}

	records := make([]bt.ServiceRecord, 0, len(ev.Services))
	for _, rec := range ev.Services {
		records = append(records, s.bind(ev.Address, rec))
	}
	records = append(records, synthesizeServices(s.deviceRecord(ev.Address), ev.UUIDs)...)

	switch {
	case s.holding:
		// A fresher result for the last device replaces the held one.
		s.commit(records)
		s.advance()
	case len(s.queue) > 1:
		s.commit(records)
		s.advance()
	default:
		s.querying = false
		s.holding = true
		s.held = records
		s.grace.arm(s.cfg.ServiceGraceWindow, s.onGraceExpired)
		logging.LogSessionEvent("services", s.runID, "result_held", zap.Stringer("device", ev.Address))
	}
}

func (s *ServiceSession) onGraceExpired() {
	if !s.active || !s.holding {
		return
	}
	s.commit(s.held)
	s.advance()
}

func (s *ServiceSession) onQueryFinished(addr bt.Address, err error) {
	if !s.isCurrent(addr) {
		logging.Debug("Dropping stale query completion", zap.Stringer("device", addr))
		return
	}
	if s.pending.busy() {
		s.querying = false
		s.resolvePending()
		return
	}
	if s.holding {
		s.commit(s.held)
		s.advance()
		return
	}
	if err != nil && s.deviceFailed(addr, err) {
		return
	}
	s.advance()
}

// bind attaches the device snapshot to a backend-produced record.
func (s *ServiceSession) bind(addr bt.Address, rec bt.ServiceRecord) bt.ServiceRecord {
	rec = rec.Clone()
	if known := s.deviceRecord(addr); rec.Device.Address.IsZero() || (rec.Device.Name == "" && known.Name != "") {
		rec.Device = known
	}
	if rec.Attributes == nil {
		rec.Attributes = make(map[uint16]bt.AttributeValue)
	}
	return rec
}

func (s *ServiceSession) deviceRecord(addr bt.Address) bt.DeviceRecord {
	if d, ok := s.Device(addr); ok {
		return d
	}
	if s.lookup != nil {
		if d, ok := s.lookup(addr); ok {
			return d
		}
	}
	return bt.DeviceRecord{Address: addr}
}

// commit reports records that pass the filter and have not been seen yet.
func (s *ServiceSession) commit(records []bt.ServiceRecord) {
	for _, rec := range records {
		if !s.active || s.pending.busy() {
			return
		}
		if !rec.MatchesAny(s.req.UUIDFilter) {
			continue
		}
		key := rec.Key()
		if _, dup := s.seen[key]; dup {
			continue
		}
		s.seen[key] = struct{}{}
		s.records = append(s.records, rec)
		s.emit(Event{Type: ServiceDiscovered, Service: rec.Clone(), Device: rec.Device.Clone()})
	}
}

func (s *ServiceSession) resolvePending() {
	res, req := s.pending.complete()
	switch res {
	case resolveCanceled:
		s.reset()
		logging.LogSessionEvent("services", s.runID, "canceled", zap.Int("services", len(s.records)))
		s.emit(Event{Type: Canceled})
	case resolveRestart:
		s.reset()
		logging.LogSessionEvent("services", s.runID, "restarting")
		if err := s.checkStart(req); err != nil {
			s.fail(err)
			return
		}
		if err := s.begin(req); err != nil {
			s.fail(err)
		}
	}
}

func (s *ServiceSession) reset() {
	s.active = false
	s.phase = servicePhaseIdle
	s.queue = nil
	s.current = bt.Address{}
	s.querying = false
	s.holding = false
	s.held = nil
	s.grace.stop()
	s.pending.reset()
}

func (s *ServiceSession) finish() {
	s.reset()
	logging.Info("Service discovery finished",
		zap.String("session", s.runID), zap.Int("services", len(s.records)))
	s.emit(Event{Type: Finished})
}

func (s *ServiceSession) fail(err error) {
	s.reset()
	s.lastErr = err
	logging.Error("Service discovery failed", zap.String("session", s.runID), zap.Error(err))
	s.emit(Event{Type: ErrorOccurred, Err: err})
	s.emit(Event{Type: Finished})
}

func (s *ServiceSession) emit(ev Event) {
	ev.Scope = ScopeServices
	ev.Session = s.runID
	s.handler(ev)
}
