package discovery

import (
	"errors"
	"testing"
	"time"

	"github.com/muurk/btscout/internal/bt"
)

var (
	addrA   = bt.MustParseAddress("AA:AA:AA:AA:AA:01")
	addrB   = bt.MustParseAddress("AA:AA:AA:AA:AA:02")
	addrC   = bt.MustParseAddress("AA:AA:AA:AA:AA:03")
	local   = bt.MustParseAddress("00:11:22:33:44:55")
	errBusy = errors.New("resource busy")
)

// fakeBackend records calls and lets tests inject errors. Events are fed to
// the sessions directly by the tests.
type fakeBackend struct {
	adapter    bt.AdapterInfo
	methods    bt.Method
	calls      []string
	errs       map[string]error
	minimal    map[bt.Address][]bt.UUID
	minimalErr map[bt.Address]error
	fullErr    map[bt.Address]error
	sink       bt.Sink
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		adapter:    bt.AdapterInfo{Address: local, Name: "hci0", Powered: true, Valid: true},
		methods:    bt.MethodBoth,
		errs:       make(map[string]error),
		minimal:    make(map[bt.Address][]bt.UUID),
		minimalErr: make(map[bt.Address]error),
		fullErr:    make(map[bt.Address]error),
	}
}

func (f *fakeBackend) record(call string) error {
	f.calls = append(f.calls, call)
	return f.errs[call]
}

func (f *fakeBackend) count(call string) int {
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeBackend) Name() string                { return "fake" }
func (f *fakeBackend) Adapter() bt.AdapterInfo     { return f.adapter }
func (f *fakeBackend) SupportedMethods() bt.Method { return f.methods }
func (f *fakeBackend) Attach(sink bt.Sink)         { f.sink = sink }
func (f *fakeBackend) StartClassicScan() error     { return f.record("start_classic") }
func (f *fakeBackend) StopClassicScan() error      { return f.record("stop_classic") }
func (f *fakeBackend) StartLowEnergyScan() error   { return f.record("start_le") }
func (f *fakeBackend) StopLowEnergyScan() error    { return f.record("stop_le") }
func (f *fakeBackend) Close() error                { return nil }

func (f *fakeBackend) QueryServicesMinimal(addr bt.Address) ([]bt.UUID, error) {
	f.calls = append(f.calls, "query_minimal "+addr.String())
	if err := f.minimalErr[addr]; err != nil {
		return nil, err
	}
	return f.minimal[addr], nil
}

func (f *fakeBackend) QueryServicesFull(addr bt.Address) error {
	f.calls = append(f.calls, "query_full "+addr.String())
	return f.fullErr[addr]
}

func (f *fakeBackend) CancelServiceQuery(addr bt.Address) error {
	return f.record("cancel_query " + addr.String())
}

type manualTimer struct {
	d        time.Duration
	fn       func()
	canceled bool
	fired    bool
}

// manualScheduler only fires timers when a test asks it to.
type manualScheduler struct {
	timers []*manualTimer
}

func (m *manualScheduler) After(d time.Duration, fn func()) func() {
	t := &manualTimer{d: d, fn: fn}
	m.timers = append(m.timers, t)
	return func() { t.canceled = true }
}

// armed counts live timers of duration d.
func (m *manualScheduler) armed(d time.Duration) int {
	n := 0
	for _, t := range m.timers {
		if t.d == d && !t.canceled && !t.fired {
			n++
		}
	}
	return n
}

// fire runs the oldest live timer of duration d.
func (m *manualScheduler) fire(t *testing.T, d time.Duration) {
	t.Helper()
	for _, tm := range m.timers {
		if tm.d == d && !tm.canceled && !tm.fired {
			tm.fired = true
			tm.fn()
			return
		}
	}
	t.Fatalf("no live timer of %v", d)
}

type recorder struct {
	events []Event
}

func (r *recorder) handle(ev Event) {
	r.events = append(r.events, ev)
}

func (r *recorder) types() []EventType {
	out := make([]EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func (r *recorder) count(t EventType) int {
	n := 0
	for _, ev := range r.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func (r *recorder) last() Event {
	if len(r.events) == 0 {
		return Event{Type: -1}
	}
	return r.events[len(r.events)-1]
}

func (r *recorder) reset() {
	r.events = nil
}

func sameTypes(got, want []EventType) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func testConfig() Config {
	return DefaultConfig()
}

func sighting(addr bt.Address, rssi int16) bt.DeviceRecord {
	return bt.DeviceRecord{Address: addr, RSSI: rssi, HasRSSI: true}
}
