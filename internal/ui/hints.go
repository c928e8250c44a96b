package ui

import "github.com/muurk/btscout/internal/bt"

// Troubleshooting returns tips for the kind of err. Unclassified errors get
// generic advice.
func Troubleshooting(err error) []string {
	if err == nil {
		return nil
	}
	switch bt.KindOf(err) {
	case bt.KindPoweredOff:
		return []string{
			"Switch the adapter on: bluetoothctl power on",
			"Check that rfkill is not blocking it: rfkill list bluetooth",
		}
	case bt.KindInvalidAdapter:
		return []string{
			"List adapters with: bluetoothctl list",
			"Check the adapter setting in the config file or pass --adapter",
			"Make sure bluetoothd is running: systemctl status bluetooth",
		}
	case bt.KindUnsupportedMethod:
		return []string{
			"The selected backend cannot scan with these methods",
			"Try --methods le, or switch to the bluez backend for Classic inquiry",
		}
	case bt.KindMissingPermissions:
		return []string{
			"Add your user to the bluetooth group, or run with sudo",
			"Check the D-Bus policy in /etc/dbus-1/system.d/bluetooth.conf",
		}
	case bt.KindInputOutput:
		return []string{
			"Move closer to the device and make sure it is discoverable",
			"Retry once the adapter has finished any running inquiry",
			"Run with --log-level debug for the raw backend errors",
		}
	default:
		return []string{
			"Run with --log-level debug for more detail",
		}
	}
}
