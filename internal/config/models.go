package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/muurk/btscout/internal/bt"
	"github.com/muurk/btscout/internal/discovery"
)

// CurrentVersion is the settings file format version.
const CurrentVersion = 1

// Backends lists the accepted values of Settings.Backend.
var Backends = []string{"bluez", "tinyble", "replay"}

// Settings represents the entire user configuration file.
type Settings struct {
	Version int `yaml:"version"`

	// Backend selects the platform stack: bluez, tinyble or replay.
	// Empty picks bluez on Linux and tinyble elsewhere.
	Backend string `yaml:"backend,omitempty"`

	// Adapter is "hci1" or an adapter address. An address also pins the
	// adapter the sessions accept.
	Adapter string `yaml:"adapter,omitempty"`

	// Scenario is the replay file used when Backend is replay. Empty plays
	// the built-in demo.
	Scenario string `yaml:"scenario,omitempty"`

	Discovery DiscoverySettings       `yaml:"discovery"`
	Server    ServerSettings          `yaml:"server"`
	Devices   map[string]*KnownDevice `yaml:"devices,omitempty"` // Keyed by canonical address
}

// DiscoverySettings mirrors discovery.Config with YAML-friendly types.
type DiscoverySettings struct {
	Methods              string   `yaml:"methods"`
	LowEnergyTimeout     Duration `yaml:"le_timeout"`
	ClassicStartWindow   Duration `yaml:"classic_start_window"`
	ClassicStartAttempts int      `yaml:"classic_start_attempts"`
	ServiceGraceWindow   Duration `yaml:"service_grace_window"`
	EventBuffer          int      `yaml:"event_buffer"`
}

type ServerSettings struct {
	Host          string  `yaml:"host,omitempty"`
	Port          int     `yaml:"port"`
	Announce      bool    `yaml:"announce"`
	Instance      string  `yaml:"instance,omitempty"`
	PresenceRate  float64 `yaml:"presence_rate"`  // Repeat sightings per second per device
	PresenceBurst int     `yaml:"presence_burst"`
}

// KnownDevice is user metadata for one remote device.
type KnownDevice struct {
	Nickname string    `yaml:"nickname,omitempty"`
	LastSeen time.Time `yaml:"last_seen,omitempty"`
	LastRSSI int16     `yaml:"last_rssi,omitempty"`
}

// Duration is a time.Duration written as "4s" in YAML.
type Duration time.Duration

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("line %d: duration must be a string like \"4s\"", node.Line)
	}
	v, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

// NewSettings creates Settings with default values.
func NewSettings() *Settings {
	def := discovery.DefaultConfig()
	return &Settings{
		Version: CurrentVersion,
		Discovery: DiscoverySettings{
			Methods:              "classic,le",
			LowEnergyTimeout:     Duration(def.LowEnergyTimeout),
			ClassicStartWindow:   Duration(def.ClassicStartWindow),
			ClassicStartAttempts: def.ClassicStartAttempts,
			ServiceGraceWindow:   Duration(def.ServiceGraceWindow),
			EventBuffer:          def.EventBuffer,
		},
		Server: ServerSettings{
			Port:          8765,
			PresenceRate:  1,
			PresenceBurst: 3,
		},
		Devices: make(map[string]*KnownDevice),
	}
}

// Validate checks every field that would otherwise fail later at runtime.
func (s *Settings) Validate() error {
	if s.Version != CurrentVersion {
		return fmt.Errorf("unsupported config version: %d (expected %d)", s.Version, CurrentVersion)
	}
	if s.Backend != "" && !contains(Backends, s.Backend) {
		return fmt.Errorf("unknown backend %q (expected one of %s)", s.Backend, strings.Join(Backends, ", "))
	}
	if _, err := s.Methods(); err != nil {
		return err
	}
	if _, err := s.DiscoveryOptions(); err != nil {
		return err
	}
	if s.Server.Port < 0 || s.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", s.Server.Port)
	}
	if s.Server.PresenceRate < 0 {
		return fmt.Errorf("presence rate must not be negative: %v", s.Server.PresenceRate)
	}
	for key := range s.Devices {
		if _, err := bt.ParseAddress(key); err != nil {
			return fmt.Errorf("devices: %w", err)
		}
	}
	return nil
}

// Methods parses Discovery.Methods. An empty value means both.
func (s *Settings) Methods() (bt.Method, error) {
	if strings.TrimSpace(s.Discovery.Methods) == "" {
		return bt.MethodBoth, nil
	}
	m, err := bt.ParseMethods(s.Discovery.Methods)
	if err != nil {
		return bt.MethodNone, fmt.Errorf("discovery.methods: %w", err)
	}
	if m == bt.MethodNone {
		return bt.MethodNone, fmt.Errorf("discovery.methods: no method selected")
	}
	return m, nil
}

// DiscoveryOptions converts the discovery section to an engine config.
func (s *Settings) DiscoveryOptions() (discovery.Config, error) {
	cfg := discovery.Config{
		LowEnergyTimeout:     time.Duration(s.Discovery.LowEnergyTimeout),
		ClassicStartWindow:   time.Duration(s.Discovery.ClassicStartWindow),
		ClassicStartAttempts: s.Discovery.ClassicStartAttempts,
		ServiceGraceWindow:   time.Duration(s.Discovery.ServiceGraceWindow),
		EventBuffer:          s.Discovery.EventBuffer,
	}
	if addr, err := bt.ParseAddress(s.Adapter); err == nil {
		cfg.AdapterAddress = addr
	}
	if err := cfg.Validate(); err != nil {
		return discovery.Config{}, fmt.Errorf("discovery: %w", err)
	}
	return cfg, nil
}

// GetDevice retrieves device metadata by address.
// Returns nil if the device doesn't exist in the settings.
func (s *Settings) GetDevice(addr bt.Address) *KnownDevice {
	return s.Devices[addr.String()]
}

// EnsureDevice returns the entry for addr, creating it if needed.
func (s *Settings) EnsureDevice(addr bt.Address) *KnownDevice {
	if s.Devices == nil {
		s.Devices = make(map[string]*KnownDevice)
	}
	key := addr.String()
	if d, ok := s.Devices[key]; ok {
		return d
	}
	d := &KnownDevice{}
	s.Devices[key] = d
	return d
}

// SetDeviceNickname sets a user-friendly nickname for a device.
func (s *Settings) SetDeviceNickname(addr bt.Address, nickname string) {
	s.EnsureDevice(addr).Nickname = nickname
}

// Nickname returns the nickname of addr, or "".
func (s *Settings) Nickname(addr bt.Address) string {
	if d := s.GetDevice(addr); d != nil {
		return d.Nickname
	}
	return ""
}

// ForgetDevice removes addr. It reports whether there was an entry.
func (s *Settings) ForgetDevice(addr bt.Address) bool {
	key := addr.String()
	if _, ok := s.Devices[key]; !ok {
		return false
	}
	delete(s.Devices, key)
	return true
}

// RememberSighting records when and how strongly a device was last seen.
// Only devices that already have an entry are updated unless all is set.
func (s *Settings) RememberSighting(d bt.DeviceRecord, at time.Time, all bool) bool {
	known := s.GetDevice(d.Address)
	if known == nil {
		if !all {
			return false
		}
		known = s.EnsureDevice(d.Address)
	}
	known.LastSeen = at
	if d.HasRSSI {
		known.LastRSSI = d.RSSI
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
