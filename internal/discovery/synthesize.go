package discovery

import "github.com/muurk/btscout/internal/bt"

// synthesizeServices turns a cached UUID list into service records. Cached
// lists carry no attributes, so each UUID becomes a record of its own, except
// that a vendor UUID next to the Serial Port class is folded into one record
// describing a serial service with a custom id.
func synthesizeServices(device bt.DeviceRecord, uuids []bt.UUID) []bt.ServiceRecord {
	var (
		custom   []bt.UUID
		standard []bt.UUID
		seen     = make(map[bt.UUID]bool, len(uuids))
	)
	for _, u := range uuids {
		if u.IsZero() || seen[u] {
			continue
		}
		seen[u] = true
		if u.IsBluetoothBase() {
			standard = append(standard, u)
		} else {
			custom = append(custom, u)
		}
	}

	hasSerial := bt.ContainsUUID(standard, bt.SerialPort)
	out := make([]bt.ServiceRecord, 0, len(custom)+len(standard))

	for _, u := range custom {
		rec := bt.NewServiceRecord(device)
		rec.SetServiceUUID(u)
		if hasSerial {
			rec.SetClassUUIDs(u, bt.SerialPort)
			rec.SetName(bt.SerialPort.WellKnownName())
		}
		out = append(out, rec)
	}

	for _, u := range standard {
		if hasSerial && len(custom) > 0 && u == bt.SerialPort {
			continue
		}
		rec := bt.NewServiceRecord(device)
		rec.SetClassUUIDs(u)
		if name := u.WellKnownName(); name != "" {
			rec.SetName(name)
		}
		out = append(out, rec)
	}
	return out
}
