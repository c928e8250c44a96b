// Package server streams discovery events to WebSocket clients.
//
// Each event becomes one JSON text message (see Message) on EventsPath. The
// server can announce itself over mDNS as ServiceType so that
// internal/remote can find it without configuration.
//
// Repeat sightings are rate limited per device: with a zero low energy
// timeout a busy room produces a DeviceDiscovered for every advertisement,
// which is far more than a remote viewer needs. The first sighting of a
// device and any update that changes more than its RSSI are always sent.
//
// # Usage Example
//
//	srv := server.New(server.Config{Port: server.DefaultPort, Announce: true}, engine)
//	if err := srv.Run(ctx, engine.Events()); err != nil {
//	    log.Fatal(err)
//	}
package server
