package discovery

import (
	"go.uber.org/zap"

	"github.com/muurk/btscout/internal/bt"
	"github.com/muurk/btscout/internal/logging"
)

type scanPhase int

const (
	phaseNoScan scanPhase = iota
	phaseClassic
	phaseLowEnergy
)

func (p scanPhase) method() bt.Method {
	switch p {
	case phaseClassic:
		return bt.MethodClassic
	case phaseLowEnergy:
		return bt.MethodLowEnergy
	default:
		return bt.MethodNone
	}
}

func (p scanPhase) core() bt.CoreConfiguration {
	switch p {
	case phaseClassic:
		return bt.CoreClassic
	case phaseLowEnergy:
		return bt.CoreLowEnergy
	default:
		return bt.CoreUnknown
	}
}

// DeviceSession scans for nearby devices, Classic first and then Low Energy,
// and keeps one merged record per address. It is not safe for concurrent use;
// see Engine for the goroutine-safe wrapper.
type DeviceSession struct {
	backend bt.Backend
	cfg     Config
	handler Handler

	active  bool
	phase   scanPhase
	methods bt.Method
	pending coordinator[bt.Method]
	runID   string
	lastErr error

	classicConfirmed bool
	attemptsLeft     int
	confirmTimer     deadline
	leTimer          deadline
	leStopping       bool

	records []bt.DeviceRecord
	index   map[bt.Address]int
}

// NewDeviceSession returns an inactive session. handler may be nil.
func NewDeviceSession(backend bt.Backend, sched Scheduler, cfg Config, handler Handler) *DeviceSession {
	if handler == nil {
		handler = func(Event) {}
	}
	return &DeviceSession{
		backend:      backend,
		cfg:          cfg.normalized(),
		handler:      handler,
		confirmTimer: deadline{sched: sched},
		leTimer:      deadline{sched: sched},
		index:        make(map[bt.Address]int),
	}
}

// Active reports whether a scan is running or being stopped.
func (s *DeviceSession) Active() bool { return s.active }

// RunID returns the id of the current or last run.
func (s *DeviceSession) RunID() string { return s.runID }

// Err returns the error that ended the last run, if any.
func (s *DeviceSession) Err() error { return s.lastErr }

// Devices returns a copy of the records collected by the current or last run.
func (s *DeviceSession) Devices() []bt.DeviceRecord {
	out := make([]bt.DeviceRecord, len(s.records))
	for i, d := range s.records {
		out[i] = d.Clone()
	}
	return out
}

// Device returns the record for addr.
func (s *DeviceSession) Device(addr bt.Address) (bt.DeviceRecord, bool) {
	i, ok := s.index[addr]
	if !ok {
		return bt.DeviceRecord{}, false
	}
	return s.records[i].Clone(), true
}

// Start begins a scan over methods. Adapter and method problems, and a
// native start the backend rejects outright, are returned and leave the
// session inactive. Starting a running session is a no-op; starting while a
// stop is in flight replaces the run once the stop is acknowledged.
func (s *DeviceSession) Start(methods bt.Method) error {
	if err := s.checkStart(methods); err != nil {
		return err
	}
	if s.active {
		if s.pending.requestStart(methods) {
			logging.LogSessionEvent("devices", s.runID, "restart_deferred",
				zap.Stringer("methods", methods))
			return nil
		}
		logging.Debug("Device scan already running", zap.String("session", s.runID))
		return nil
	}
	return s.begin(methods)
}

// Stop cancels the running scan. Canceled is emitted once the backend
// acknowledges the native stop, or at once if the stop call itself fails.
func (s *DeviceSession) Stop() {
	if !s.active {
		return
	}
	if !s.pending.requestStop() {
		return
	}
	s.confirmTimer.stop()
	s.leTimer.stop()
	logging.LogSessionEvent("devices", s.runID, "stop_requested", zap.Stringer("phase", s.phase.method()))

	var err error
	switch s.phase {
	case phaseClassic:
		err = s.backend.StopClassicScan()
	case phaseLowEnergy:
		if s.leStopping {
			// The timeout stop is already in flight; its acknowledgment
			// resolves the cancel.
			return
		}
		err = s.backend.StopLowEnergyScan()
	default:
		s.resolvePending()
		return
	}
	if err != nil {
		logging.Warn("Native stop failed, finalizing cancel",
			zap.String("session", s.runID), zap.Error(err))
		s.resolvePending()
	}
}

// HandleBackendEvent feeds a backend event to the session. Service events
// are ignored.
func (s *DeviceSession) HandleBackendEvent(ev bt.Event) {
	switch ev.Kind {
	case bt.EventDeviceFound:
		s.onDeviceFound(ev.Device)
	case bt.EventScanStarted:
		s.onScanStarted(ev.Method)
	case bt.EventScanFinished:
		s.onScanEnded(ev.Method, nil)
	case bt.EventScanFailed:
		s.onScanEnded(ev.Method, ev.Err)
	}
}

func (s *DeviceSession) checkStart(methods bt.Method) error {
	const op = "start device discovery"
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
	if methods == bt.MethodNone || !s.backend.SupportedMethods().Has(methods) {
		return bt.NewError(bt.KindUnsupportedMethod, op, nil)
	}
	return nil
}

func (s *DeviceSession) begin(methods bt.Method) error {
	s.runID = newRunID()
	s.records = nil
	s.index = make(map[bt.Address]int)
	s.methods = methods
	s.lastErr = nil
	s.active = true
	s.pending.reset()

	var err error
	if methods.Has(bt.MethodClassic) {
		err = s.startClassic()
	} else {
		err = s.startLowEnergy()
	}
	if err != nil {
		s.reset()
		s.lastErr = err
		return err
	}
	logging.Info("Device discovery started",
		zap.String("session", s.runID),
		zap.Stringer("methods", methods),
		zap.String("backend", s.backend.Name()))
	return nil
}

func (s *DeviceSession) startClassic() error {
	if err := s.backend.StartClassicScan(); err != nil {
		return bt.Classify(err, bt.KindInputOutput, "start classic scan")
	}
	s.phase = phaseClassic
	s.classicConfirmed = false
	s.attemptsLeft = s.cfg.ClassicStartAttempts
	s.confirmTimer.arm(s.cfg.ClassicStartWindow, s.onClassicStartTimeout)
	return nil
}

func (s *DeviceSession) startLowEnergy() error {
	if err := s.backend.StartLowEnergyScan(); err != nil {
		return bt.Classify(err, bt.KindInputOutput, "start low energy scan")
	}
	s.phase = phaseLowEnergy
	s.leStopping = false
	if s.cfg.LowEnergyTimeout > 0 {
		s.leTimer.arm(s.cfg.LowEnergyTimeout, s.onLowEnergyTimeout)
	}
	return nil
}

// afterClassic moves on once the Classic part of the run is over.
func (s *DeviceSession) afterClassic() {
	s.phase = phaseNoScan
	if !s.methods.Has(bt.MethodLowEnergy) {
		s.finish()
		return
	}
	if err := s.startLowEnergy(); err != nil {
		s.fail(err)
	}
}

func (s *DeviceSession) onClassicStartTimeout() {
	if !s.active || s.phase != phaseClassic || s.classicConfirmed || s.pending.busy() {
		return
	}
	if !s.backend.Adapter().Powered {
		s.fail(bt.NewError(bt.KindPoweredOff, "start classic scan", nil))
		return
	}
	if s.attemptsLeft > 0 {
		s.attemptsLeft--
		logging.Warn("Classic scan start not confirmed, retrying",
			zap.String("session", s.runID),
			zap.Int("attempts_left", s.attemptsLeft))
		if err := s.backend.StartClassicScan(); err != nil {
			s.fail(bt.Classify(err, bt.KindInputOutput, "start classic scan"))
			return
		}
		s.confirmTimer.arm(s.cfg.ClassicStartWindow, s.onClassicStartTimeout)
		return
	}

	logging.Warn("Classic scan never started, abandoning it", zap.String("session", s.runID))
	if err := s.backend.StopClassicScan(); err != nil {
		logging.Debug("Best-effort classic stop failed", zap.Error(err))
	}
	if !s.methods.Has(bt.MethodLowEnergy) {
		s.fail(bt.NewError(bt.KindInputOutput, "start classic scan", nil))
		return
	}
	s.afterClassic()
}

func (s *DeviceSession) onLowEnergyTimeout() {
	if !s.active || s.phase != phaseLowEnergy || s.pending.busy() {
		return
	}
	logging.LogSessionEvent("devices", s.runID, "le_timeout")
	s.leStopping = true
	if err := s.backend.StopLowEnergyScan(); err != nil {
		logging.Warn("Stopping timed out LE scan failed", zap.Error(err))
		s.finish()
	}
}

func (s *DeviceSession) onScanStarted(m bt.Method) {
	if !s.active || s.phase != phaseClassic || m != bt.MethodClassic {
		return
	}
	s.classicConfirmed = true
	s.confirmTimer.stop()
}

func (s *DeviceSession) onScanEnded(m bt.Method, err error) {
	if !s.active {
		return
	}
	if m != s.phase.method() {
		logging.Debug("Dropping scan end for inactive phase",
			zap.String("session", s.runID), zap.Stringer("method", m))
		return
	}
	s.confirmTimer.stop()
	s.leTimer.stop()

	if s.pending.busy() {
		s.resolvePending()
		return
	}

	switch s.phase {
	case phaseClassic:
		if err != nil {
			err = s.scanError("classic scan", err)
			if bt.KindOf(err) == bt.KindPoweredOff || !s.methods.Has(bt.MethodLowEnergy) {
				s.fail(err)
				return
			}
			logging.Warn("Classic scan failed, continuing with LE",
				zap.String("session", s.runID), zap.Error(err))
		}
		s.afterClassic()
	case phaseLowEnergy:
		if err != nil {
			s.fail(s.scanError("low energy scan", err))
			return
		}
		s.finish()
	}
}

func (s *DeviceSession) onDeviceFound(seen bt.DeviceRecord) {
	if !s.active || s.pending.busy() {
		return
	}
	if seen.Address.IsZero() {
		return
	}
	seen = seen.Clone()
	if seen.CoreConfigurations == bt.CoreUnknown {
		seen.CoreConfigurations = s.phase.core()
	}

	i, ok := s.index[seen.Address]
	if !ok {
		s.index[seen.Address] = len(s.records)
		s.records = append(s.records, seen)
		s.emitDevice(DeviceDiscovered, seen, bt.FieldNone)
		return
	}

	cur := &s.records[i]
	if seen.CoreConfigurations&^cur.CoreConfigurations != 0 {
		fields := cur.Diff(seen) | bt.FieldCoreConfigurations
		absorb(cur, seen)
		cur.CoreConfigurations |= seen.CoreConfigurations
		s.emitDevice(DeviceUpdated, *cur, fields)
		return
	}

	fields := cur.Diff(seen)
	absorb(cur, seen)
	if fields != bt.FieldNone {
		s.emitDevice(DeviceUpdated, *cur, fields)
	}
	if s.cfg.LowEnergyTimeout == 0 {
		// Without a timeout the scan never finishes, so every sighting is
		// re-announced for liveness tracking.
		s.emitDevice(DeviceDiscovered, *cur, bt.FieldNone)
	}
}

// scanError classifies a scan failure, blaming the adapter when it has been
// switched off underneath the scan.
func (s *DeviceSession) scanError(op string, err error) error {
	if !s.backend.Adapter().Powered {
		return bt.NewError(bt.KindPoweredOff, op, err)
	}
	return bt.Classify(err, bt.KindInputOutput, op)
}

// absorb copies the richer parts of seen into cur.
func absorb(cur *bt.DeviceRecord, seen bt.DeviceRecord) {
	if seen.Name != "" {
		cur.Name = seen.Name
	}
	if seen.Class != 0 {
		cur.Class = seen.Class
	}
	if seen.HasRSSI {
		cur.RSSI = seen.RSSI
		cur.HasRSSI = true
	}
	cur.MergeManufacturerData(seen.ManufacturerData)
	cur.MergeServiceData(seen.ServiceData)
	cur.AddServiceUUIDs(seen.ServiceUUIDs...)
	cur.Cached = cur.Cached && seen.Cached
}

func (s *DeviceSession) resolvePending() {
	res, methods := s.pending.complete()
	switch res {
	case resolveCanceled:
		s.reset()
		logging.LogSessionEvent("devices", s.runID, "canceled", zap.Int("devices", len(s.records)))
		s.emit(Event{Type: Canceled})
	case resolveRestart:
		s.reset()
		logging.LogSessionEvent("devices", s.runID, "restarting", zap.Stringer("methods", methods))
		if err := s.checkStart(methods); err != nil {
			s.fail(err)
			return
		}
		if err := s.begin(methods); err != nil {
			s.fail(err)
		}
	}
}

func (s *DeviceSession) reset() {
	s.active = false
	s.phase = phaseNoScan
	s.classicConfirmed = false
	s.leStopping = false
	s.confirmTimer.stop()
	s.leTimer.stop()
	s.pending.reset()
}

func (s *DeviceSession) finish() {
	s.reset()
	logging.Info("Device discovery finished",
		zap.String("session", s.runID), zap.Int("devices", len(s.records)))
	s.emit(Event{Type: Finished})
}

func (s *DeviceSession) fail(err error) {
	s.reset()
	s.lastErr = err
	logging.Error("Device discovery failed", zap.String("session", s.runID), zap.Error(err))
	s.emit(Event{Type: ErrorOccurred, Err: err})
	s.emit(Event{Type: Finished})
}

func (s *DeviceSession) emitDevice(t EventType, d bt.DeviceRecord, fields bt.UpdatedFields) {
	s.emit(Event{Type: t, Device: d.Clone(), Fields: fields})
}

func (s *DeviceSession) emit(ev Event) {
	ev.Scope = ScopeDevices
	ev.Session = s.runID
	s.handler(ev)
}
