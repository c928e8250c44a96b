package replay

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/muurk/btscout/internal/bt"
)

// Scenario is the YAML description of a simulated adapter and its
// surroundings.
type Scenario struct {
	Name      string                 `yaml:"name"`
	Adapter   AdapterSpec            `yaml:"adapter"`
	Methods   string                 `yaml:"methods"`
	Classic   ScanSpec               `yaml:"classic"`
	LowEnergy ScanSpec               `yaml:"low_energy"`
	Services  map[string]ServiceSpec `yaml:"services"`
}

// AdapterSpec describes the local adapter.
type AdapterSpec struct {
	Address string `yaml:"address"`
	Name    string `yaml:"name"`
	Powered *bool  `yaml:"powered"`
	Missing bool   `yaml:"missing"`
}

// ScanSpec scripts one scan method. Times are offsets from the start call.
type ScanSpec struct {
	StartDelay  time.Duration  `yaml:"start_delay"`
	Unconfirmed bool           `yaml:"unconfirmed"`
	RejectStart bool           `yaml:"reject_start"`
	Duration    time.Duration  `yaml:"duration"`
	FailAfter   time.Duration  `yaml:"fail_after"`
	Sightings   []SightingSpec `yaml:"sightings"`
}

// SightingSpec is one advertisement or inquiry result. With Every set it
// repeats until the scan ends.
type SightingSpec struct {
	At           time.Duration     `yaml:"at"`
	Every        time.Duration     `yaml:"every"`
	Address      string            `yaml:"address"`
	Name         string            `yaml:"name"`
	RSSI         *int16            `yaml:"rssi"`
	Class        uint32            `yaml:"class"`
	Manufacturer map[uint16]string `yaml:"manufacturer"`
	ServiceData  map[string]string `yaml:"service_data"`
	UUIDs        []string          `yaml:"uuids"`
	Cached       bool              `yaml:"cached"`
}

// ServiceSpec scripts the services of one remote device.
type ServiceSpec struct {
	Cached    []string      `yaml:"cached"`
	Delay     time.Duration `yaml:"delay"`
	Records   []RecordSpec  `yaml:"records"`
	Results   [][]string    `yaml:"results"`
	ResultGap time.Duration `yaml:"result_gap"`
	Error     string        `yaml:"error"`
	Reject    bool          `yaml:"reject"`
}

// RecordSpec is one SDP record returned by a full query.
type RecordSpec struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Provider    string   `yaml:"provider"`
	ServiceUUID string   `yaml:"service_uuid"`
	Classes     []string `yaml:"classes"`
	RFCOMM      uint8    `yaml:"rfcomm"`
	PSM         uint16   `yaml:"psm"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Parse decodes and validates a scenario document.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if _, err := sc.compile(); err != nil {
		return nil, err
	}
	return &sc, nil
}

type sighting struct {
	at     time.Duration
	every  time.Duration
	device bt.DeviceRecord
}

type scanScript struct {
	startDelay  time.Duration
	unconfirmed bool
	rejectStart bool
	duration    time.Duration
	failAfter   time.Duration
	sightings   []sighting
}

type serviceScript struct {
	cached    []bt.UUID
	delay     time.Duration
	records   []bt.ServiceRecord
	results   [][]bt.UUID
	resultGap time.Duration
	err       error
	reject    bool
}

type script struct {
	adapter  bt.AdapterInfo
	methods  bt.Method
	scans    map[bt.Method]scanScript
	services map[bt.Address]serviceScript
}

func (sc *Scenario) compile() (*script, error) {
	out := &script{
		adapter: bt.AdapterInfo{
			Name:    sc.Adapter.Name,
			Powered: sc.Adapter.Powered == nil || *sc.Adapter.Powered,
			Valid:   !sc.Adapter.Missing,
		},
		methods:  bt.MethodBoth,
		scans:    make(map[bt.Method]scanScript, 2),
		services: make(map[bt.Address]serviceScript, len(sc.Services)),
	}
	if out.adapter.Name == "" {
		out.adapter.Name = "replay0"
	}
	if sc.Adapter.Address != "" {
		addr, err := bt.ParseAddress(sc.Adapter.Address)
		if err != nil {
			return nil, fmt.Errorf("adapter: %w", err)
		}
		out.adapter.Address = addr
	}
	if sc.Methods != "" {
		m, err := bt.ParseMethods(sc.Methods)
		if err != nil {
			return nil, err
		}
		out.methods = m
	}

	for method, spec := range map[bt.Method]ScanSpec{bt.MethodClassic: sc.Classic, bt.MethodLowEnergy: sc.LowEnergy} {
		s, err := compileScan(method, spec)
		if err != nil {
			return nil, err
		}
		out.scans[method] = s
	}

	for key, spec := range sc.Services {
		addr, err := bt.ParseAddress(key)
		if err != nil {
			return nil, fmt.Errorf("services: %w", err)
		}
		s, err := compileServices(addr, spec)
		if err != nil {
			return nil, fmt.Errorf("services %s: %w", addr, err)
		}
		out.services[addr] = s
	}
	return out, nil
}

func compileScan(method bt.Method, spec ScanSpec) (scanScript, error) {
	core := bt.CoreClassic
	if method == bt.MethodLowEnergy {
		core = bt.CoreLowEnergy
	}
	s := scanScript{
		startDelay:  spec.StartDelay,
		unconfirmed: spec.Unconfirmed,
		rejectStart: spec.RejectStart,
		duration:    spec.Duration,
		failAfter:   spec.FailAfter,
	}
	for i, raw := range spec.Sightings {
		d, err := compileSighting(raw)
		if err != nil {
			return s, fmt.Errorf("%s sighting %d: %w", method, i, err)
		}
		d.CoreConfigurations = core
		s.sightings = append(s.sightings, sighting{at: raw.At, every: raw.Every, device: d})
	}
	return s, nil
}

func compileSighting(raw SightingSpec) (bt.DeviceRecord, error) {
	addr, err := bt.ParseAddress(raw.Address)
	if err != nil {
		return bt.DeviceRecord{}, err
	}
	d := bt.DeviceRecord{
		Address: addr,
		Name:    raw.Name,
		Class:   bt.DeviceClass(raw.Class),
		Cached:  raw.Cached,
	}
	if raw.RSSI != nil {
		d.RSSI = *raw.RSSI
		d.HasRSSI = true
	}
	for id, blob := range raw.Manufacturer {
		b, err := decodeHex(blob)
		if err != nil {
			return d, fmt.Errorf("manufacturer 0x%04X: %w", id, err)
		}
		d.MergeManufacturerData(map[uint16][]byte{id: b})
	}
	for key, blob := range raw.ServiceData {
		u, err := bt.ParseUUID(key)
		if err != nil {
			return d, err
		}
		b, err := decodeHex(blob)
		if err != nil {
			return d, fmt.Errorf("service data %s: %w", u, err)
		}
		d.MergeServiceData(map[bt.UUID][]byte{u: b})
	}
	uuids, err := parseUUIDs(raw.UUIDs)
	if err != nil {
		return d, err
	}
	d.AddServiceUUIDs(uuids...)
	return d, nil
}

func compileServices(addr bt.Address, spec ServiceSpec) (serviceScript, error) {
	s := serviceScript{
		delay:     spec.Delay,
		resultGap: spec.ResultGap,
		reject:    spec.Reject,
	}
	if spec.Error != "" {
		s.err = bt.NewDeviceError(bt.KindInputOutput, "query services", addr, errors.New(spec.Error))
	}
	cached, err := parseUUIDs(spec.Cached)
	if err != nil {
		return s, err
	}
	s.cached = cached

	for i, raw := range spec.Records {
		rec := bt.NewServiceRecord(bt.DeviceRecord{Address: addr})
		classes, err := parseUUIDs(raw.Classes)
		if err != nil {
			return s, fmt.Errorf("record %d: %w", i, err)
		}
		if len(classes) > 0 {
			rec.SetClassUUIDs(classes...)
		}
		if raw.ServiceUUID != "" {
			u, err := bt.ParseUUID(raw.ServiceUUID)
			if err != nil {
				return s, fmt.Errorf("record %d: %w", i, err)
			}
			rec.SetServiceUUID(u)
		}
		if raw.Name != "" {
			rec.SetName(raw.Name)
		}
		if raw.Description != "" {
			rec.SetAttribute(bt.AttrServiceDescription, bt.String(raw.Description))
		}
		if raw.Provider != "" {
			rec.SetAttribute(bt.AttrServiceProvider, bt.String(raw.Provider))
		}
		switch {
		case raw.RFCOMM != 0:
			rec.SetRFCOMMChannel(raw.RFCOMM)
		case raw.PSM != 0:
			rec.SetL2CAPPSM(raw.PSM)
		}
		s.records = append(s.records, rec)
	}

	for i, list := range spec.Results {
		uuids, err := parseUUIDs(list)
		if err != nil {
			return s, fmt.Errorf("result %d: %w", i, err)
		}
		s.results = append(s.results, uuids)
	}
	return s, nil
}

func parseUUIDs(in []string) ([]bt.UUID, error) {
	out := make([]bt.UUID, 0, len(in))
	for _, raw := range in {
		u, err := bt.ParseUUID(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func decodeHex(s string) ([]byte, error) {
	s = strings.NewReplacer(" ", "", ":", "", "-", "").Replace(s)
	return hex.DecodeString(s)
}
