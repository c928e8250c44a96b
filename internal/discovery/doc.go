// Package discovery orchestrates Bluetooth device and service discovery on
// top of a platform backend.
//
// Two sessions do the work. A DeviceSession runs Classic inquiry and Low
// Energy scanning in sequence and merges sightings into one DeviceRecord per
// address. A ServiceSession walks a queue of devices and reports the
// services each one offers. Both are plain state machines: they never block
// and they expect every call, timer expiry and backend event to arrive on a
// single goroutine.
//
// Engine supplies that goroutine. It runs a Loop, attaches itself to the
// backend as the event sink and exposes goroutine-safe methods plus an
// Events channel:
//
//	eng := discovery.NewEngine(backend, discovery.DefaultConfig())
//	go eng.Run(ctx)
//
//	if err := eng.StartDevices(ctx, bt.MethodBoth); err != nil {
//	    return err
//	}
//	for ev := range eng.Events() {
//	    switch ev.Type {
//	    case discovery.DeviceDiscovered:
//	        fmt.Println(ev.Device.DisplayName())
//	    case discovery.Finished, discovery.Canceled:
//	        return nil
//	    }
//	}
//
// # Stop and restart
//
// Stopping a session issues the native stop and waits for the backend to
// acknowledge it before Canceled is emitted. A Start issued while that stop
// is in flight is deferred and replayed once the acknowledgment arrives, so
// a late callback from the old run never leaks into the new one.
package discovery
