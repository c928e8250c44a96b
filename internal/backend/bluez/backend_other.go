//go:build !linux

package bluez

import (
	"errors"

	"github.com/muurk/btscout/internal/bt"
)

// Backend is unavailable outside Linux.
type Backend struct{ bt.Backend }

// Open always fails: BlueZ only exists on Linux.
func Open(Options) (*Backend, error) {
	return nil, bt.NewError(bt.KindInvalidAdapter, "open adapter", errors.New("bluez backend requires linux"))
}
