//go:build linux

package bluez

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"github.com/muurk/btscout/internal/bt"
	"github.com/muurk/btscout/internal/logging"
)

// Backend drives one BlueZ adapter over the system bus.
type Backend struct {
	opts    Options
	conn    *dbus.Conn
	path    dbus.ObjectPath
	signals chan *dbus.Signal

	mu       sync.Mutex
	sink     bt.Sink
	adapter  bt.AdapterInfo
	devices  map[dbus.ObjectPath]deviceProps
	scanning bt.Method
	inquiry  *time.Timer
	queries  map[bt.Address]context.CancelFunc
	cleanups []func()
	closed   bool
}

// Open connects to bluetoothd and selects the adapter named by opts.
func Open(opts Options) (*Backend, error) {
	opts = opts.withDefaults()
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, classify("connect system bus", err)
	}

	objs, err := managed(conn)
	if err != nil {
		return nil, classify("list bluez objects", err)
	}
	path, props, ok := pickAdapter(objs, opts.Adapter)
	if !ok {
		return nil, bt.NewError(bt.KindInvalidAdapter, "open adapter", errNoAdapter)
	}

	b := &Backend{
		opts:    opts,
		conn:    conn,
		path:    path,
		signals: make(chan *dbus.Signal, 64),
		devices: make(map[dbus.ObjectPath]deviceProps),
		queries: make(map[bt.Address]context.CancelFunc),
	}
	b.adapter = adapterInfo(props)
	for p, ifaces := range objs {
		if dev, ok := ifaces[deviceIface]; ok && strings.HasPrefix(string(p), string(path)+"/") {
			b.devices[p] = deviceProps(dev)
		}
	}

	if err := b.subscribe(); err != nil {
		b.Close()
		return nil, classify("subscribe to bluez signals", err)
	}
	go b.watch()

	logging.Info("BlueZ adapter opened",
		zap.String("path", string(path)),
		zap.Stringer("address", b.adapter.Address),
		zap.Bool("powered", b.adapter.Powered),
		zap.Int("known_devices", len(b.devices)))
	return b, nil
}

func managed(conn *dbus.Conn) (managedObjects, error) {
	var objs managedObjects
	call := conn.Object(bluezService, "/").Call(objManagerIface+".GetManagedObjects", 0)
	if call.Err != nil {
		return nil, call.Err
	}
	if err := call.Store(&objs); err != nil {
		return nil, err
	}
	return objs, nil
}

func (b *Backend) subscribe() error {
	b.conn.Signal(b.signals)
	b.cleanups = append(b.cleanups, func() { b.conn.RemoveSignal(b.signals) })

	matches := [][]dbus.MatchOption{
		{dbus.WithMatchInterface(objManagerIface), dbus.WithMatchMember("InterfacesAdded")},
		{dbus.WithMatchInterface(objManagerIface), dbus.WithMatchMember("InterfacesRemoved")},
		{dbus.WithMatchInterface(propsIface), dbus.WithMatchMember("PropertiesChanged"), dbus.WithMatchPathNamespace(b.path)},
	}
	for _, opts := range matches {
		if err := b.conn.AddMatchSignal(opts...); err != nil {
			return err
		}
		opts := opts
		b.cleanups = append(b.cleanups, func() { _ = b.conn.RemoveMatchSignal(opts...) })
	}
	return nil
}

func (b *Backend) Name() string { return "bluez" }

func (b *Backend) Adapter() bt.AdapterInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.adapter
}

// SupportedMethods reports both: BlueZ filters discovery by transport.
func (b *Backend) SupportedMethods() bt.Method { return bt.MethodBoth }

func (b *Backend) Attach(sink bt.Sink) {
	b.mu.Lock()
	b.sink = sink
	b.mu.Unlock()
}

func (b *Backend) StartClassicScan() error {
	return b.startDiscovery(bt.MethodClassic, "bredr")
}

func (b *Backend) StartLowEnergyScan() error {
	return b.startDiscovery(bt.MethodLowEnergy, "le")
}

func (b *Backend) StopClassicScan() error {
	return b.stopDiscovery(bt.MethodClassic)
}

func (b *Backend) StopLowEnergyScan() error {
	return b.stopDiscovery(bt.MethodLowEnergy)
}

func (b *Backend) startDiscovery(m bt.Method, transport string) error {
	op := "start " + m.String() + " scan"
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case b.scanning == m:
		return nil
	case b.scanning != bt.MethodNone:
		return bt.NewError(bt.KindInputOutput, op, errScanRunning)
	}

	adapter := b.conn.Object(bluezService, b.path)
	filter := map[string]dbus.Variant{
		"Transport":     dbus.MakeVariant(transport),
		"DuplicateData": dbus.MakeVariant(m == bt.MethodLowEnergy),
	}
	if call := adapter.Call(adapterIface+".SetDiscoveryFilter", 0, filter); call.Err != nil {
		return classify(op, call.Err)
	}
	if call := adapter.Call(adapterIface+".StartDiscovery", 0); call.Err != nil {
		return classify(op, call.Err)
	}
	b.scanning = m
	if m == bt.MethodClassic {
		// BR/EDR discovery never ends on its own under BlueZ, so bound it
		// like a classic inquiry.
		b.inquiry = time.AfterFunc(b.opts.InquiryDuration, b.endInquiry)
	}
	logging.Debug("BlueZ discovery started", zap.String("transport", transport))
	b.postAsync(bt.ScanStarted(m))
	return nil
}

func (b *Backend) endInquiry() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.scanning != bt.MethodClassic {
		return
	}
	b.scanning = bt.MethodNone
	b.inquiry = nil
	if call := b.conn.Object(bluezService, b.path).Call(adapterIface+".StopDiscovery", 0); call.Err != nil {
		b.postAsync(bt.ScanFailed(bt.MethodClassic, classify("end classic inquiry", call.Err)))
		return
	}
	b.postAsync(bt.ScanFinished(bt.MethodClassic))
}

func (b *Backend) stopDiscovery(m bt.Method) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.scanning != m {
		return nil
	}
	if b.inquiry != nil {
		b.inquiry.Stop()
		b.inquiry = nil
	}
	call := b.conn.Object(bluezService, b.path).Call(adapterIface+".StopDiscovery", 0)
	b.scanning = bt.MethodNone
	if call.Err != nil {
		return classify("stop "+m.String()+" scan", call.Err)
	}
	b.postAsync(bt.ScanFinished(m))
	return nil
}

func (b *Backend) QueryServicesMinimal(addr bt.Address) ([]bt.UUID, error) {
	path := devicePath(b.path, addr)
	b.mu.Lock()
	props, ok := b.devices[path]
	b.mu.Unlock()
	if ok {
		return props.uuids(), nil
	}

	var v dbus.Variant
	err := b.conn.Object(bluezService, path).Call(propsIface+".Get", 0, deviceIface, "UUIDs").Store(&v)
	if err != nil {
		return nil, bt.NewDeviceError(bt.KindInputOutput, "query cached services", addr, errUnknownDevice)
	}
	return deviceProps{"UUIDs": v}.uuids(), nil
}

func (b *Backend) QueryServicesFull(addr bt.Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, busy := b.queries[addr]; busy {
		return bt.NewDeviceError(bt.KindInputOutput, "query services", addr, errQueryRunning)
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.opts.ResolveTimeout)
	b.queries[addr] = cancel
	go b.resolve(ctx, addr)
	return nil
}

// resolve connects to the device so bluetoothd runs SDP or GATT discovery,
// then reports the UUIDs it resolved.
func (b *Backend) resolve(ctx context.Context, addr bt.Address) {
	path := devicePath(b.path, addr)
	dev := b.conn.Object(bluezService, path)
	op := "query services"

	finish := func(err error) {
		b.mu.Lock()
		cancel, mine := b.queries[addr]
		delete(b.queries, addr)
		b.mu.Unlock()
		if !mine {
			return
		}
		cancel()
		b.post(bt.ServiceQueryFinished(addr, err))
	}

	connected := b.deviceBool(dev, "Connected")
	if !connected {
		if call := dev.CallWithContext(ctx, deviceIface+".Connect", 0); call.Err != nil {
			if ctx.Err() == context.Canceled {
				return
			}
			finish(bt.NewDeviceError(classify(op, call.Err).Kind, op, addr, call.Err))
			return
		}
		defer dev.Call(deviceIface+".Disconnect", 0)
	}

	tick := time.NewTicker(b.opts.PollInterval)
	defer tick.Stop()
	for !b.deviceBool(dev, "ServicesResolved") {
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				finish(bt.NewDeviceError(bt.KindInputOutput, op, addr, errResolveTimeout))
			}
			return
		case <-tick.C:
		}
	}

	objs, err := managed(b.conn)
	if err != nil {
		finish(bt.NewDeviceError(bt.KindInputOutput, op, addr, err))
		return
	}
	props := deviceProps(objs[path][deviceIface])
	uuids := props.uuids()
	for _, u := range gattServices(objs, path) {
		if !bt.ContainsUUID(uuids, u) {
			uuids = append(uuids, u)
		}
	}
	if ctx.Err() != nil {
		return
	}
	b.post(bt.ServiceResult(addr, uuids))
	finish(nil)
}

func (b *Backend) deviceBool(dev dbus.BusObject, prop string) bool {
	var v dbus.Variant
	if err := dev.Call(propsIface+".Get", 0, deviceIface, prop).Store(&v); err != nil {
		return false
	}
	on, _ := v.Value().(bool)
	return on
}

func (b *Backend) CancelServiceQuery(addr bt.Address) error {
	b.mu.Lock()
	cancel, ok := b.queries[addr]
	delete(b.queries, addr)
	b.mu.Unlock()
	if !ok {
		return bt.NewDeviceError(bt.KindInputOutput, "cancel service query", addr, errNoQuery)
	}
	cancel()
	b.postAsync(bt.ServiceQueryFinished(addr, bt.NewDeviceError(bt.KindInputOutput, "query services", addr, errQueryCanceled)))
	return nil
}

// Close stops discovery and releases the bus subscriptions in reverse order.
func (b *Backend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	if b.inquiry != nil {
		b.inquiry.Stop()
	}
	if b.scanning != bt.MethodNone {
		b.conn.Object(bluezService, b.path).Call(adapterIface+".StopDiscovery", 0)
		b.scanning = bt.MethodNone
	}
	for _, cancel := range b.queries {
		cancel()
	}
	cleanups := b.cleanups
	b.cleanups = nil
	b.mu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	close(b.signals)
	return nil
}

// watch runs until Close and turns bus signals into backend events.
func (b *Backend) watch() {
	for sig := range b.signals {
		if sig == nil {
			continue
		}
		switch sig.Name {
		case objManagerIface + ".InterfacesAdded":
			b.onInterfacesAdded(sig)
		case objManagerIface + ".InterfacesRemoved":
			if len(sig.Body) > 0 {
				if path, ok := sig.Body[0].(dbus.ObjectPath); ok {
					b.mu.Lock()
					delete(b.devices, path)
					b.mu.Unlock()
				}
			}
		case propsIface + ".PropertiesChanged":
			b.onPropertiesChanged(sig)
		}
	}
}

func (b *Backend) onInterfacesAdded(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}
	path, ok := sig.Body[0].(dbus.ObjectPath)
	if !ok || !strings.HasPrefix(string(path), string(b.path)+"/") {
		return
	}
	ifaces, ok := sig.Body[1].(map[string]map[string]dbus.Variant)
	if !ok {
		return
	}
	dev, ok := ifaces[deviceIface]
	if !ok {
		return
	}
	b.mu.Lock()
	props := deviceProps(dev)
	b.devices[path] = props
	ev, ok := b.sighting(path, props)
	b.mu.Unlock()
	if ok {
		b.post(ev)
	}
}

func (b *Backend) onPropertiesChanged(sig *dbus.Signal) {
	if len(sig.Body) < 3 {
		return
	}
	iface, _ := sig.Body[0].(string)
	changed, _ := sig.Body[1].(map[string]dbus.Variant)
	invalidated, _ := sig.Body[2].([]string)

	switch {
	case iface == adapterIface && sig.Path == b.path:
		b.onAdapterChanged(changed)
	case iface == deviceIface:
		b.mu.Lock()
		props, ok := b.devices[sig.Path]
		if !ok {
			props = deviceProps{}
			b.devices[sig.Path] = props
		}
		props.merge(changed, invalidated)
		var ev bt.Event
		if advertised(changed) {
			ev, ok = b.sighting(sig.Path, props)
		} else {
			ok = false
		}
		b.mu.Unlock()
		if ok {
			b.post(ev)
		}
	}
}

// advertised reports whether a property change came from radio traffic
// rather than from bookkeeping such as Connected or Trusted.
func advertised(changed map[string]dbus.Variant) bool {
	for _, k := range []string{"RSSI", "ManufacturerData", "ServiceData", "Name", "Class", "UUIDs"} {
		if _, ok := changed[k]; ok {
			return true
		}
	}
	return false
}

// sighting must be called with b.mu held.
func (b *Backend) sighting(path dbus.ObjectPath, props deviceProps) (bt.Event, bool) {
	if b.scanning == bt.MethodNone {
		return bt.Event{}, false
	}
	fallback := bt.CoreLowEnergy
	if b.scanning == bt.MethodClassic {
		fallback = bt.CoreClassic
	}
	rec, ok := props.record(path, fallback)
	if !ok {
		return bt.Event{}, false
	}
	return bt.DeviceFound(rec), true
}

func (b *Backend) onAdapterChanged(changed map[string]dbus.Variant) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v, ok := changed["Powered"]; ok {
		on, _ := v.Value().(bool)
		b.adapter.Powered = on
		if !on && b.scanning != bt.MethodNone {
			m := b.scanning
			b.scanning = bt.MethodNone
			if b.inquiry != nil {
				b.inquiry.Stop()
				b.inquiry = nil
			}
			logging.Warn("BlueZ adapter powered off during discovery", zap.Stringer("method", m))
			b.postAsync(bt.ScanFailed(m, bt.NewError(bt.KindPoweredOff, "scan", nil)))
		}
	}
	if v, ok := changed["Discovering"]; ok {
		if on, _ := v.Value().(bool); !on && b.scanning != bt.MethodNone {
			// Another client or bluetoothd itself ended discovery.
			m := b.scanning
			b.scanning = bt.MethodNone
			if b.inquiry != nil {
				b.inquiry.Stop()
				b.inquiry = nil
			}
			b.postAsync(bt.ScanFinished(m))
		}
	}
	if v, ok := changed["Alias"]; ok {
		if name, ok := v.Value().(string); ok {
			b.adapter.Name = name
		}
	}
}

func (b *Backend) post(ev bt.Event) {
	b.mu.Lock()
	sink, closed := b.sink, b.closed
	b.mu.Unlock()
	if sink == nil || closed {
		return
	}
	sink.Post(ev)
}

func (b *Backend) postAsync(ev bt.Event) {
	go b.post(ev)
}
