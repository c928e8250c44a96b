package bt

// AdapterInfo describes the local adapter a backend drives.
type AdapterInfo struct {
	Address Address
	Name    string
	Powered bool
	Valid   bool
}

// Backend is the contract a platform Bluetooth stack satisfies.
//
// Start and query methods return once the native call has been issued; their
// outcome is reported through Events posted to the attached Sink. Every
// successful Start*Scan is eventually followed by EventScanFinished or
// EventScanFailed for the same method, and a Stop*Scan on an active scan is
// acknowledged the same way.
//
// The discovery engine calls these methods from a single goroutine and
// expects events to be posted from the backend's own goroutines, never from
// inside one of these calls.
type Backend interface {
	// Name identifies the backend in logs, e.g. "bluez".
	Name() string

	// Adapter reports the current state of the local adapter.
	Adapter() AdapterInfo

	// SupportedMethods returns the discovery methods the platform can run.
	SupportedMethods() Method

	// Attach sets the sink that receives backend events. It is called once
	// before any other method except Name, Adapter and SupportedMethods.
	Attach(sink Sink)

	StartClassicScan() error
	StopClassicScan() error
	StartLowEnergyScan() error
	StopLowEnergyScan() error

	// QueryServicesMinimal returns the platform-cached service UUIDs of a
	// device without radio traffic. The list may be stale.
	QueryServicesMinimal(addr Address) ([]UUID, error)

	// QueryServicesFull starts a live service query. Results arrive as
	// EventServiceFound, EventServiceResult and EventServiceQueryFinished.
	QueryServicesFull(addr Address) error

	// CancelServiceQuery aborts a live query started by QueryServicesFull.
	CancelServiceQuery(addr Address) error

	// Close releases native resources.
	Close() error
}

// Sink receives backend events. Post may be called from any goroutine.
type Sink interface {
	Post(ev Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ev Event)

// Post calls f(ev).
func (f SinkFunc) Post(ev Event) { f(ev) }
