// Package bluez implements bt.Backend on top of bluetoothd's D-Bus API.
//
// Classic and low energy discovery map onto Adapter1.StartDiscovery with a
// transport filter. Sightings come from InterfacesAdded and PropertiesChanged
// signals on Device1 objects. A full service query connects to the device and
// waits for ServicesResolved; the cached query reads the Device1 UUIDs
// property.
package bluez
