package tinyble

import (
	"errors"
	"sync"
	"testing"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/muurk/btscout/internal/bt"
)

// fakeRadio plays adverts into Scan and blocks until StopScan.
type fakeRadio struct {
	enableErr error
	scanErr   error
	adverts   []advert

	mu   sync.Mutex
	stop chan struct{}
}

func (r *fakeRadio) Enable() error { return r.enableErr }

func (r *fakeRadio) Scan(fn func(advert)) error {
	r.mu.Lock()
	r.stop = make(chan struct{})
	stop := r.stop
	r.mu.Unlock()
	for _, a := range r.adverts {
		fn(a)
	}
	if r.scanErr != nil {
		return r.scanErr
	}
	<-stop
	return nil
}

func (r *fakeRadio) StopScan() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stop == nil {
		return errors.New("not scanning")
	}
	close(r.stop)
	r.stop = nil
	return nil
}

type chanSink chan bt.Event

func (c chanSink) Post(ev bt.Event) { c <- ev }

func next(t *testing.T, c chanSink) bt.Event {
	t.Helper()
	select {
	case ev := <-c:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a backend event")
		return bt.Event{}
	}
}

func TestRecord(t *testing.T) {
	tests := []struct {
		name string
		in   advert
		ok   bool
	}{
		{"mac address", advert{Address: "C4:7C:8D:6A:12:34", RSSI: -70, Name: "Flower care"}, true},
		{"peripheral uuid", advert{Address: "5d6a6c9e-0b3e-4c3e-9f7a-3a9b0f3c1d2e"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := record(tt.in)
			if ok != tt.ok {
				t.Fatalf("record() ok = %v, want %v", ok, tt.ok)
			}
			if ok && (rec.CoreConfigurations != bt.CoreLowEnergy || rec.Name != tt.in.Name || !rec.HasRSSI) {
				t.Errorf("record() = %+v", rec)
			}
		})
	}
}

func TestRecordManufacturerData(t *testing.T) {
	rec, _ := record(advert{
		Address: "C4:7C:8D:6A:12:34",
		Manufacturer: []bluetooth.ManufacturerDataElement{
			{CompanyID: 0x0499, Data: []byte{0x05, 0x12}},
		},
	})
	if got := rec.ManufacturerData[0x0499]; len(got) != 2 || got[1] != 0x12 {
		t.Errorf("manufacturer data = %x", got)
	}
	if rec.HasRSSI {
		t.Error("zero RSSI should be reported as absent")
	}
}

func TestOpenEnableFailure(t *testing.T) {
	_, err := open(&fakeRadio{enableErr: errors.New("permission denied")})
	if !errors.Is(err, bt.ErrInvalidAdapter) {
		t.Fatalf("open() error = %v, want invalid adapter", err)
	}
}

func TestScanLifecycle(t *testing.T) {
	r := &fakeRadio{adverts: []advert{{Address: "C4:7C:8D:6A:12:34", RSSI: -60}}}
	b, err := open(r)
	if err != nil {
		t.Fatal(err)
	}
	sink := make(chanSink, 8)
	b.Attach(sink)

	if got := b.SupportedMethods(); got != bt.MethodLowEnergy {
		t.Errorf("SupportedMethods() = %v", got)
	}
	if err := b.StartClassicScan(); !errors.Is(err, bt.ErrUnsupportedMethod) {
		t.Errorf("StartClassicScan() = %v", err)
	}

	if err := b.StartLowEnergyScan(); err != nil {
		t.Fatal(err)
	}
	if ev := next(t, sink); ev.Kind != bt.EventScanStarted {
		t.Fatalf("first event = %v", ev.Kind)
	}
	if ev := next(t, sink); ev.Kind != bt.EventDeviceFound {
		t.Fatalf("second event = %v", ev.Kind)
	}
	if err := b.StartLowEnergyScan(); err == nil {
		t.Error("second StartLowEnergyScan() should fail while scanning")
	}

	uuids, err := b.QueryServicesMinimal(bt.MustParseAddress("C4:7C:8D:6A:12:34"))
	if err != nil || len(uuids) != 0 {
		t.Errorf("QueryServicesMinimal(seen) = %v, %v", uuids, err)
	}
	if _, err := b.QueryServicesMinimal(bt.MustParseAddress("00:11:22:33:44:55")); err == nil {
		t.Error("QueryServicesMinimal(unseen) should fail")
	}

	if err := b.StopLowEnergyScan(); err != nil {
		t.Fatal(err)
	}
	if ev := next(t, sink); ev.Kind != bt.EventScanFinished || ev.Method != bt.MethodLowEnergy {
		t.Fatalf("stop ack = %v/%v", ev.Kind, ev.Method)
	}
}

func TestScanFailure(t *testing.T) {
	b, _ := open(&fakeRadio{scanErr: errors.New("adapter gone")})
	sink := make(chanSink, 4)
	b.Attach(sink)
	if err := b.StartLowEnergyScan(); err != nil {
		t.Fatal(err)
	}
	next(t, sink)
	ev := next(t, sink)
	if ev.Kind != bt.EventScanFailed || !errors.Is(ev.Err, bt.ErrInputOutput) {
		t.Fatalf("event = %v (%v), want scan failure", ev.Kind, ev.Err)
	}
}

func TestServiceQueriesUnsupported(t *testing.T) {
	b, _ := open(&fakeRadio{})
	addr := bt.MustParseAddress("C4:7C:8D:6A:12:34")
	if err := b.QueryServicesFull(addr); !errors.Is(err, bt.ErrUnsupportedMethod) {
		t.Errorf("QueryServicesFull() = %v", err)
	}
	if err := b.CancelServiceQuery(addr); err == nil {
		t.Error("CancelServiceQuery() without a query should fail")
	}
}
