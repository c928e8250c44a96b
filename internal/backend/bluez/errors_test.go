package bluez

import (
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"

	"github.com/muurk/btscout/internal/bt"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bt.Kind
	}{
		{"not ready", dbus.Error{Name: "org.bluez.Error.NotReady"}, bt.KindPoweredOff},
		{"pointer reply", &dbus.Error{Name: "org.bluez.Error.NotAuthorized"}, bt.KindMissingPermissions},
		{"access denied", dbus.Error{Name: "org.freedesktop.DBus.Error.AccessDenied"}, bt.KindMissingPermissions},
		{"not supported", dbus.Error{Name: "org.bluez.Error.NotSupported"}, bt.KindUnsupportedMethod},
		{"no bluetoothd", dbus.Error{Name: "org.freedesktop.DBus.Error.ServiceUnknown"}, bt.KindInvalidAdapter},
		{"in progress", dbus.Error{Name: "org.bluez.Error.InProgress"}, bt.KindInputOutput},
		{"plain error", errors.New("broken pipe"), bt.KindInputOutput},
		{"already classified", bt.NewError(bt.KindPoweredOff, "x", nil), bt.KindPoweredOff},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify("op", tt.err)
			if got == nil || got.Kind != tt.want {
				t.Fatalf("classify(%v) = %v, want kind %v", tt.err, got, tt.want)
			}
		})
	}
	if classify("op", nil) != nil {
		t.Error("classify(nil) should be nil")
	}
}
