package bt

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// UUID is a 128-bit Bluetooth UUID in big-endian byte order.
type UUID [16]byte

// baseUUID is the Bluetooth base UUID 00000000-0000-1000-8000-00805F9B34FB.
var baseUUID = UUID{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x10, 0x00, 0x80, 0x00, 0x00, 0x80, 0x5F, 0x9B, 0x34, 0xFB}

// Well-known service class and protocol UUIDs used by the engine.
var (
	SerialPort                = UUID16(0x1101)
	PublicBrowseGroup         = UUID16(0x1002)
	ProtocolL2CAP             = UUID16(0x0100)
	ProtocolRFCOMM            = UUID16(0x0003)
	ServiceDiscoveryServer    = UUID16(0x1000)
	GenericAccessProfile      = UUID16(0x1800)
	GenericAttributeProfile   = UUID16(0x1801)
	HandsfreeAudioGateway     = UUID16(0x111F)
	AdvancedAudioDistribution = UUID16(0x110D)
)

// UUID16 expands a 16-bit short UUID over the base UUID.
func UUID16(v uint16) UUID {
	return UUID32(uint32(v))
}

// UUID32 expands a 32-bit short UUID over the base UUID.
func UUID32(v uint32) UUID {
	u := baseUUID
	u[0] = byte(v >> 24)
	u[1] = byte(v >> 16)
	u[2] = byte(v >> 8)
	u[3] = byte(v)
	return u
}

// ParseUUID parses the canonical 36-character form, the undashed 32-character
// form, or a 16/32-bit short form with optional 0x prefix.
func ParseUUID(s string) (UUID, error) {
	var u UUID
	raw := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	switch len(raw) {
	case 4, 8:
		v, err := strconv.ParseUint(raw, 16, 32)
		if err != nil {
			return u, fmt.Errorf("invalid uuid %q: %w", s, err)
		}
		return UUID32(uint32(v)), nil
	case 36:
		if raw[8] != '-' || raw[13] != '-' || raw[18] != '-' || raw[23] != '-' {
			return u, fmt.Errorf("invalid uuid %q", s)
		}
		raw = strings.ReplaceAll(raw, "-", "")
	case 32:
	default:
		return u, fmt.Errorf("invalid uuid %q", s)
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return u, fmt.Errorf("invalid uuid %q: %w", s, err)
	}
	copy(u[:], b)
	return u, nil
}

// MustParseUUID is ParseUUID for constants and tests.
func MustParseUUID(s string) UUID {
	u, err := ParseUUID(s)
	if err != nil {
		panic(err)
	}
	return u
}

// IsBluetoothBase reports whether u is derived from the Bluetooth base UUID,
// i.e. a well-known SIG-assigned UUID rather than a vendor-specific one.
func (u UUID) IsBluetoothBase() bool {
	return [12]byte(u[4:]) == [12]byte(baseUUID[4:])
}

// Short returns the 32-bit short form and true if u is base-derived.
func (u UUID) Short() (uint32, bool) {
	if !u.IsBluetoothBase() {
		return 0, false
	}
	return uint32(u[0])<<24 | uint32(u[1])<<16 | uint32(u[2])<<8 | uint32(u[3]), true
}

// IsZero reports whether u is the nil UUID.
func (u UUID) IsZero() bool {
	return u == UUID{}
}

// String returns the canonical lower-case dashed form.
func (u UUID) String() string {
	h := hex.EncodeToString(u[:])
	return h[0:8] + "-" + h[8:12] + "-" + h[12:16] + "-" + h[16:20] + "-" + h[20:32]
}

// MarshalText implements encoding.TextMarshaler.
func (u UUID) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *UUID) UnmarshalText(text []byte) error {
	parsed, err := ParseUUID(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// ContainsUUID reports whether list contains u.
func ContainsUUID(list []UUID, u UUID) bool {
	for _, v := range list {
		if v == u {
			return true
		}
	}
	return false
}

var wellKnownNames = map[UUID]string{
	SerialPort:                "Serial Port",
	PublicBrowseGroup:         "Public Browse Group",
	ServiceDiscoveryServer:    "Service Discovery Server",
	GenericAccessProfile:      "Generic Access",
	GenericAttributeProfile:   "Generic Attribute",
	HandsfreeAudioGateway:     "Handsfree Audio Gateway",
	AdvancedAudioDistribution: "Advanced Audio Distribution",
	UUID16(0x1105):            "OBEX Object Push",
	UUID16(0x1106):            "OBEX File Transfer",
	UUID16(0x110A):            "Audio Source",
	UUID16(0x110B):            "Audio Sink",
	UUID16(0x110C):            "A/V Remote Control Target",
	UUID16(0x110E):            "A/V Remote Control",
	UUID16(0x1108):            "Headset",
	UUID16(0x1112):            "Headset Audio Gateway",
	UUID16(0x111E):            "Handsfree",
	UUID16(0x1124):            "Human Interface Device",
	UUID16(0x112F):            "Phonebook Access Server",
	UUID16(0x1132):            "Message Access Server",
	UUID16(0x1200):            "PnP Information",
	UUID16(0x180A):            "Device Information",
	UUID16(0x180F):            "Battery",
	UUID16(0x180D):            "Heart Rate",
}

// WellKnownName returns the assigned name of a standard service class, or ""
// when u is not one the package knows about.
func (u UUID) WellKnownName() string {
	return wellKnownNames[u]
}
