package tinyble

import (
	"errors"
	"sync"

	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"

	"github.com/muurk/btscout/internal/bt"
	"github.com/muurk/btscout/internal/logging"
)

var (
	errClassicUnsupported = errors.New("classic discovery is not available on this backend")
	errFullUnsupported    = errors.New("live service queries are not available on this backend")
	errNoQuery            = errors.New("no service query running")
	errNotSeen            = errors.New("device has not been seen")
	errScanRunning        = errors.New("scan already running")
)

// Backend scans for LE advertisements on the default adapter.
type Backend struct {
	radio radio

	mu       sync.Mutex
	sink     bt.Sink
	enabled  bool
	scanning bool
	stopping bool
	seen     map[bt.Address]struct{}
	closed   bool
}

// Open enables the platform's default adapter.
func Open() (*Backend, error) {
	return open(tinygoRadio{adapter: bluetooth.DefaultAdapter})
}

func open(r radio) (*Backend, error) {
	if err := r.Enable(); err != nil {
		return nil, bt.NewError(bt.KindInvalidAdapter, "enable adapter", err)
	}
	return &Backend{radio: r, enabled: true, seen: make(map[bt.Address]struct{})}, nil
}

func (b *Backend) Name() string { return "tinyble" }

// Adapter reports an enabled adapter as powered; the library exposes no
// power state of its own.
func (b *Backend) Adapter() bt.AdapterInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bt.AdapterInfo{Name: "default", Valid: b.enabled, Powered: b.enabled && !b.closed}
}

func (b *Backend) SupportedMethods() bt.Method { return bt.MethodLowEnergy }

func (b *Backend) Attach(sink bt.Sink) {
	b.mu.Lock()
	b.sink = sink
	b.mu.Unlock()
}

func (b *Backend) StartClassicScan() error {
	return bt.NewError(bt.KindUnsupportedMethod, "start classic scan", errClassicUnsupported)
}

func (b *Backend) StopClassicScan() error { return nil }

func (b *Backend) StartLowEnergyScan() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.scanning {
		return bt.NewError(bt.KindInputOutput, "start le scan", errScanRunning)
	}
	b.scanning = true
	b.stopping = false
	go b.scan()
	return nil
}

func (b *Backend) scan() {
	b.post(bt.ScanStarted(bt.MethodLowEnergy))
	err := b.radio.Scan(b.onAdvert)

	b.mu.Lock()
	requested := b.stopping
	b.scanning = false
	b.stopping = false
	b.mu.Unlock()

	if err != nil && !requested {
		logging.Warn("LE scan ended with error", zap.Error(err))
		b.post(bt.ScanFailed(bt.MethodLowEnergy, bt.NewError(bt.KindInputOutput, "le scan", err)))
		return
	}
	b.post(bt.ScanFinished(bt.MethodLowEnergy))
}

func (b *Backend) onAdvert(a advert) {
	rec, ok := record(a)
	if !ok {
		logging.Debug("Skipping advertisement without a MAC address", zap.String("address", a.Address))
		return
	}
	b.mu.Lock()
	b.seen[rec.Address] = struct{}{}
	b.mu.Unlock()
	b.post(bt.DeviceFound(rec))
}

// record converts an advertisement. macOS reports peripheral UUIDs rather
// than addresses; those are skipped.
func record(a advert) (bt.DeviceRecord, bool) {
	addr, err := bt.ParseAddress(a.Address)
	if err != nil {
		return bt.DeviceRecord{}, false
	}
	d := bt.DeviceRecord{
		Address:            addr,
		Name:               a.Name,
		RSSI:               a.RSSI,
		HasRSSI:            a.RSSI != 0,
		CoreConfigurations: bt.CoreLowEnergy,
	}
	if len(a.Manufacturer) > 0 {
		data := make(map[uint16][]byte, len(a.Manufacturer))
		for _, m := range a.Manufacturer {
			data[m.CompanyID] = m.Data
		}
		d.MergeManufacturerData(data)
	}
	return d, true
}

func (b *Backend) StopLowEnergyScan() error {
	b.mu.Lock()
	if !b.scanning {
		b.mu.Unlock()
		return nil
	}
	b.stopping = true
	b.mu.Unlock()
	if err := b.radio.StopScan(); err != nil {
		return bt.NewError(bt.KindInputOutput, "stop le scan", err)
	}
	return nil
}

// QueryServicesMinimal has nothing cached beyond the fact that the device
// advertised, so it returns an empty list for any device seen this process.
func (b *Backend) QueryServicesMinimal(addr bt.Address) ([]bt.UUID, error) {
	b.mu.Lock()
	_, ok := b.seen[addr]
	b.mu.Unlock()
	if !ok {
		return nil, bt.NewDeviceError(bt.KindInputOutput, "query cached services", addr, errNotSeen)
	}
	return nil, nil
}

func (b *Backend) QueryServicesFull(addr bt.Address) error {
	return bt.NewDeviceError(bt.KindUnsupportedMethod, "query services", addr, errFullUnsupported)
}

func (b *Backend) CancelServiceQuery(addr bt.Address) error {
	return bt.NewDeviceError(bt.KindInputOutput, "cancel service query", addr, errNoQuery)
}

func (b *Backend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	scanning := b.scanning
	b.stopping = true
	b.mu.Unlock()
	if scanning {
		return b.radio.StopScan()
	}
	return nil
}

func (b *Backend) post(ev bt.Event) {
	b.mu.Lock()
	sink := b.sink
	b.mu.Unlock()
	if sink != nil {
		sink.Post(ev)
	}
}
