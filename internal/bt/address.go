package bt

import (
	"fmt"
	"strconv"
	"strings"
)

// Address is a 48-bit Bluetooth device address. The zero value is invalid.
type Address [6]byte

// ParseAddress parses "AA:BB:CC:DD:EE:FF". Dash and underscore separators
// are accepted as well (BlueZ object paths use underscores).
func ParseAddress(s string) (Address, error) {
	var a Address
	normalized := strings.NewReplacer("-", ":", "_", ":").Replace(strings.TrimSpace(s))
	parts := strings.Split(normalized, ":")
	if len(parts) != 6 {
		return a, fmt.Errorf("invalid bluetooth address %q", s)
	}
	for i, p := range parts {
		if len(p) != 2 {
			return a, fmt.Errorf("invalid bluetooth address %q", s)
		}
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return a, fmt.Errorf("invalid bluetooth address %q: %w", s, err)
		}
		a[i] = byte(v)
	}
	if a.IsZero() {
		return a, fmt.Errorf("invalid bluetooth address %q: all zero", s)
	}
	return a, nil
}

// MustParseAddress is ParseAddress for constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool {
	return a == Address{}
}

// String returns the canonical upper-case colon form.
func (a Address) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", a[0], a[1], a[2], a[3], a[4], a[5])
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
