// Package bt holds the backend-agnostic Bluetooth data model shared by the
// discovery engine and the platform backends.
//
// # Records
//
// DeviceRecord describes one remote device as seen by a scan. It is keyed by
// Address and carries the advertisement-derived fields (RSSI, manufacturer
// data, service data) that the discovery engine diffs on every sighting.
//
// ServiceRecord is a snapshot of one SDP service on a device. The attribute
// map is the source of truth; ServiceUUID, ClassUUIDs and ServerChannel are
// derived from it.
//
// # Backends
//
// A Backend wraps one native stack (BlueZ, tinygo bluetooth, a replay
// scenario). It issues native calls when asked and reports results by
// posting Events to the Sink it was attached to. Backends may post from any
// goroutine; the engine serializes delivery.
//
// # Errors
//
// Every failure that reaches a caller is classified into a Kind. Use KindOf
// to classify an arbitrary error and errors.Is against the Err* sentinels to
// test for a kind.
package bt
