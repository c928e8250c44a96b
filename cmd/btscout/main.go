// Btscout discovers nearby Bluetooth devices and their services.
//
// It drives a discovery engine over a platform backend (BlueZ over D-Bus on
// Linux, tinygo bluetooth elsewhere, or a scripted replay) and presents the
// results as tables, a live terminal view, or a WebSocket event stream.
//
// Usage:
//
//	btscout [command] [flags]
//
// See 'btscout --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/btscout/internal/config"
	"github.com/muurk/btscout/internal/logging"
	"github.com/muurk/btscout/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	configPath  string
	backendName string
	adapterName string
	scenario    string
	methodsFlag string
	logLevel    string
	jsonOutput  bool

	settings *config.Settings
)

var rootCmd = &cobra.Command{
	Use:   "btscout",
	Short: "Bluetooth device and service discovery",
	Long: `Discover nearby Bluetooth Classic and Low Energy devices and the
services they offer.

Discovery runs Classic inquiry first and Low Energy scanning second when both
methods are selected. Devices seen by both are merged into one record.

Settings are read from the config file (see --config) and may be overridden
with flags.`,
	Version:           version.Version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	Example: `  # One scan over both methods
  btscout scan

  # Low Energy only, as JSON
  btscout scan --methods le --json

  # Live view without hardware
  btscout watch --backend replay

  # Stream events to the network
  btscout serve --announce`,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default: OS config dir/btscout/config.yaml)")
	pf.StringVar(&backendName, "backend", "", "Bluetooth backend (bluez, tinyble, replay)")
	pf.StringVar(&adapterName, "adapter", "", "Local adapter, e.g. hci1 or its address")
	pf.StringVar(&scenario, "scenario", "", "Replay scenario file (replay backend; default: built-in demo)")
	pf.StringVar(&methodsFlag, "methods", "", "Discovery methods: classic, le or both (comma separated)")
	pf.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); default: $"+logging.LogLevelEnvVar)
	pf.BoolVar(&jsonOutput, "json", false, "Print JSON instead of tables")

	rootCmd.AddCommand(versionCmd)
}

// setup initializes logging and loads settings, applying flag overrides.
func setup(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel); err != nil {
		return err
	}

	var err error
	if configPath != "" {
		settings, err = config.LoadFile(configPath)
	} else {
		settings, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if backendName != "" {
		settings.Backend = backendName
	}
	if adapterName != "" {
		settings.Adapter = adapterName
	}
	if scenario != "" {
		settings.Scenario = scenario
		if backendName == "" {
			settings.Backend = "replay"
		}
	}
	if methodsFlag != "" {
		settings.Discovery.Methods = methodsFlag
	}
	return settings.Validate()
}

// saveSettings writes settings back to where they were loaded from.
func saveSettings() error {
	if configPath != "" {
		return settings.SaveFile(configPath)
	}
	return settings.Save()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	// Version must work without a readable config file.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput {
			return newPrinter().PrintJSON(version.Get())
		}
		fmt.Printf("btscout %s\n", version.Full())
		return nil
	},
}
