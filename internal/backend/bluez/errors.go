package bluez

import (
	"errors"

	"github.com/godbus/dbus/v5"

	"github.com/muurk/btscout/internal/bt"
)

var (
	errNoAdapter      = errors.New("no bluetooth adapter found")
	errUnknownDevice  = errors.New("device not known to bluez")
	errQueryRunning   = errors.New("service query already running")
	errQueryCanceled  = errors.New("service query canceled")
	errNoQuery        = errors.New("no service query running")
	errScanRunning    = errors.New("another scan is running")
	errResolveTimeout = errors.New("timed out waiting for services to resolve")
)

// classify maps a D-Bus error reply onto a discovery error kind.
func classify(op string, err error) *bt.Error {
	if err == nil {
		return nil
	}
	var derr dbus.Error
	if !errors.As(err, &derr) {
		var pderr *dbus.Error
		if errors.As(err, &pderr) {
			derr = *pderr
		} else {
			return bt.Classify(err, bt.KindInputOutput, op)
		}
	}
	switch derr.Name {
	case "org.bluez.Error.NotReady":
		return bt.NewError(bt.KindPoweredOff, op, err)
	case "org.bluez.Error.NotAuthorized", "org.freedesktop.DBus.Error.AccessDenied":
		return bt.NewError(bt.KindMissingPermissions, op, err)
	case "org.bluez.Error.NotSupported":
		return bt.NewError(bt.KindUnsupportedMethod, op, err)
	case "org.freedesktop.DBus.Error.ServiceUnknown", "org.freedesktop.DBus.Error.UnknownObject":
		return bt.NewError(bt.KindInvalidAdapter, op, err)
	default:
		return bt.NewError(bt.KindInputOutput, op, err)
	}
}
