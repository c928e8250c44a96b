// Package config manages the btscout settings file.
//
// The file is YAML and lives in the platform configuration directory:
//   - Linux: $XDG_CONFIG_HOME/btscout/config.yaml or $HOME/.config/btscout/config.yaml
//   - macOS: $HOME/.config/btscout/config.yaml
//   - Windows: %LOCALAPPDATA%\btscout\config.yaml
//
// It holds the backend choice, discovery tuning, event-server options and
// per-device nicknames. Durations are written as strings ("4s").
//
// # Usage Example
//
//	settings, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg, err := settings.DiscoveryOptions()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	engine := discovery.NewEngine(backend, cfg)
//
//	settings.SetDeviceNickname(addr, "Kitchen speaker")
//	if err := settings.Save(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// File operations are protected by a mutex to ensure atomic writes.
// Settings values themselves are not synchronized.
package config
