package tinyble

import (
	"tinygo.org/x/bluetooth"
)

// advert is the part of a scan result the backend uses.
type advert struct {
	Address      string
	RSSI         int16
	Name         string
	Manufacturer []bluetooth.ManufacturerDataElement
}

// radio is the slice of *bluetooth.Adapter the backend drives.
type radio interface {
	Enable() error
	// Scan blocks until StopScan is called or scanning fails.
	Scan(fn func(advert)) error
	StopScan() error
}

type tinygoRadio struct {
	adapter *bluetooth.Adapter
}

func (r tinygoRadio) Enable() error { return r.adapter.Enable() }

func (r tinygoRadio) Scan(fn func(advert)) error {
	return r.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
		fn(advert{
			Address:      result.Address.String(),
			RSSI:         result.RSSI,
			Name:         result.LocalName(),
			Manufacturer: result.ManufacturerData(),
		})
	})
}

func (r tinygoRadio) StopScan() error { return r.adapter.StopScan() }
