package bt

import "fmt"

// EventKind identifies a raw backend event.
type EventKind int

const (
	// EventDeviceFound carries one advertisement or inquiry result in Device.
	EventDeviceFound EventKind = iota
	// EventScanStarted confirms that the scan for Method is running.
	EventScanStarted
	// EventScanFinished reports that the scan for Method ended.
	EventScanFinished
	// EventScanFailed reports that the scan for Method ended with Err.
	EventScanFailed
	// EventServiceFound carries one service record of Address in Service.
	EventServiceFound
	// EventServiceResult carries a batch result for Address in UUIDs and/or
	// Services. Some stacks deliver it twice, the second superseding the first.
	EventServiceResult
	// EventServiceQueryFinished ends the query for Address, with Err on failure.
	EventServiceQueryFinished
)

func (k EventKind) String() string {
	switch k {
	case EventDeviceFound:
		return "device_found"
	case EventScanStarted:
		return "scan_started"
	case EventScanFinished:
		return "scan_finished"
	case EventScanFailed:
		return "scan_failed"
	case EventServiceFound:
		return "service_found"
	case EventServiceResult:
		return "service_result"
	case EventServiceQueryFinished:
		return "service_query_finished"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is a raw event raised by a Backend.
type Event struct {
	Kind     EventKind
	Method   Method
	Device   DeviceRecord
	Address  Address
	Service  ServiceRecord
	Services []ServiceRecord
	UUIDs    []UUID
	Err      error
}

// DeviceFound builds an EventDeviceFound.
func DeviceFound(d DeviceRecord) Event {
	return Event{Kind: EventDeviceFound, Device: d, Address: d.Address}
}

// ScanStarted builds an EventScanStarted.
func ScanStarted(m Method) Event {
	return Event{Kind: EventScanStarted, Method: m}
}

// ScanFinished builds an EventScanFinished.
func ScanFinished(m Method) Event {
	return Event{Kind: EventScanFinished, Method: m}
}

// ScanFailed builds an EventScanFailed.
func ScanFailed(m Method, err error) Event {
	return Event{Kind: EventScanFailed, Method: m, Err: err}
}

// ServiceFound builds an EventServiceFound.
func ServiceFound(addr Address, s ServiceRecord) Event {
	return Event{Kind: EventServiceFound, Address: addr, Service: s}
}

// ServiceResult builds an EventServiceResult from a UUID list.
func ServiceResult(addr Address, uuids []UUID) Event {
	return Event{Kind: EventServiceResult, Address: addr, UUIDs: uuids}
}

// ServiceQueryFinished builds an EventServiceQueryFinished.
func ServiceQueryFinished(addr Address, err error) Event {
	return Event{Kind: EventServiceQueryFinished, Address: addr, Err: err}
}
