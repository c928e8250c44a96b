package discovery

import (
	"fmt"
	"time"

	"github.com/muurk/btscout/internal/bt"
)

const (
	// DefaultLowEnergyTimeout bounds an LE scan. Zero disables the bound.
	DefaultLowEnergyTimeout = 40 * time.Second

	// DefaultClassicStartWindow is how long a Classic inquiry may take to
	// confirm that it started before it is re-issued.
	DefaultClassicStartWindow = 500 * time.Millisecond

	// DefaultClassicStartAttempts is the number of re-issues after the first
	// unconfirmed Classic start.
	DefaultClassicStartAttempts = 5

	// DefaultServiceGraceWindow is how long a result for the last queued
	// device is held in case a fresher one follows.
	DefaultServiceGraceWindow = 4 * time.Second

	// DefaultEventBuffer sizes the loop queue and the Events channel.
	DefaultEventBuffer = 64
)

// Config tunes the sessions.
type Config struct {
	// AdapterAddress pins the local adapter. The zero address accepts
	// whichever adapter the backend drives.
	AdapterAddress bt.Address

	LowEnergyTimeout     time.Duration
	ClassicStartWindow   time.Duration
	ClassicStartAttempts int
	ServiceGraceWindow   time.Duration
	EventBuffer          int
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		LowEnergyTimeout:     DefaultLowEnergyTimeout,
		ClassicStartWindow:   DefaultClassicStartWindow,
		ClassicStartAttempts: DefaultClassicStartAttempts,
		ServiceGraceWindow:   DefaultServiceGraceWindow,
		EventBuffer:          DefaultEventBuffer,
	}
}

// Validate rejects negative durations and counts.
func (c Config) Validate() error {
	switch {
	case c.LowEnergyTimeout < 0:
		return fmt.Errorf("low energy timeout must not be negative: %v", c.LowEnergyTimeout)
	case c.ClassicStartWindow < 0:
		return fmt.Errorf("classic start window must not be negative: %v", c.ClassicStartWindow)
	case c.ClassicStartAttempts < 0:
		return fmt.Errorf("classic start attempts must not be negative: %d", c.ClassicStartAttempts)
	case c.ServiceGraceWindow < 0:
		return fmt.Errorf("service grace window must not be negative: %v", c.ServiceGraceWindow)
	case c.EventBuffer < 0:
		return fmt.Errorf("event buffer must not be negative: %d", c.EventBuffer)
	}
	return nil
}

// normalized fills unset fields whose zero value has no meaning.
// LowEnergyTimeout and ClassicStartAttempts are left alone: zero is valid
// for both.
func (c Config) normalized() Config {
	if c.ClassicStartWindow <= 0 {
		c.ClassicStartWindow = DefaultClassicStartWindow
	}
	if c.ServiceGraceWindow <= 0 {
		c.ServiceGraceWindow = DefaultServiceGraceWindow
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = DefaultEventBuffer
	}
	if c.ClassicStartAttempts < 0 {
		c.ClassicStartAttempts = 0
	}
	if c.LowEnergyTimeout < 0 {
		c.LowEnergyTimeout = 0
	}
	return c
}
