package discovery

import (
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero le timeout", func(c *Config) { c.LowEnergyTimeout = 0 }, false},
		{"negative le timeout", func(c *Config) { c.LowEnergyTimeout = -time.Second }, true},
		{"negative attempts", func(c *Config) { c.ClassicStartAttempts = -1 }, true},
		{"negative grace", func(c *Config) { c.ServiceGraceWindow = -time.Second }, true},
		{"negative window", func(c *Config) { c.ClassicStartWindow = -time.Second }, true},
		{"negative buffer", func(c *Config) { c.EventBuffer = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigNormalized(t *testing.T) {
	cfg := Config{}.normalized()
	if cfg.LowEnergyTimeout != 0 {
		t.Error("zero LE timeout is meaningful and must be kept")
	}
	if cfg.ClassicStartWindow != DefaultClassicStartWindow {
		t.Errorf("ClassicStartWindow = %v", cfg.ClassicStartWindow)
	}
	if cfg.ServiceGraceWindow != DefaultServiceGraceWindow {
		t.Errorf("ServiceGraceWindow = %v", cfg.ServiceGraceWindow)
	}
	if cfg.EventBuffer != DefaultEventBuffer {
		t.Errorf("EventBuffer = %d", cfg.EventBuffer)
	}
}
