package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/btscout/internal/bt"
	"github.com/muurk/btscout/internal/discovery"
	"github.com/muurk/btscout/internal/server"
	"github.com/muurk/btscout/internal/ui"
)

// Scan command flags
var (
	leTimeout   time.Duration
	remember    bool
	rememberAll bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one device discovery",
	Long: `Run one device discovery and print every device found.

Classic inquiry runs first, then Low Energy scanning until --le-timeout
elapses. Lines are printed as devices are discovered or updated, followed by a
table of the final records. Ctrl-C stops the scan and prints what was found.`,
	Example: `  # Scan with the configured methods
  btscout scan

  # Quick Low Energy scan
  btscout scan --methods le --le-timeout 5s

  # Record last-seen times for known devices
  btscout scan --remember`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().DurationVar(&leTimeout, "le-timeout", discovery.DefaultLowEnergyTimeout, "Low Energy scan duration (0 = until stopped)")
	scanCmd.Flags().BoolVar(&remember, "remember", false, "Save last-seen time and RSSI of known devices to the config")
	scanCmd.Flags().BoolVar(&rememberAll, "remember-all", false, "Like --remember, and add unknown devices too")

	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	methods, err := settings.Methods()
	if err != nil {
		return err
	}
	cfg, err := settings.DiscoveryOptions()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("le-timeout") {
		cfg.LowEnergyTimeout = leTimeout
	}

	p := newPrinter()
	if !jsonOutput {
		p.PrintHeader("Device scan", "btscout scan",
			ui.Param{Key: "Backend", Value: backendFor(settings)},
			ui.Param{Key: "Methods", Value: methods.String()},
			ui.Param{Key: "LE timeout", Value: durationOrForever(cfg.LowEnergyTimeout)},
		)
	}

	sess, err := startSession(cfg)
	if err != nil {
		return reportFailure(p, "Could not open backend", err)
	}
	defer sess.Close()

	if err := sess.engine.StartDevices(ctx, methods); err != nil {
		return reportFailure(p, "Device scan did not start", err)
	}

	started := time.Now()
	out := sess.drain(ctx, discovery.ScopeDevices, sess.engine.StopDevices, func(ev discovery.Event) {
		if !jsonOutput {
			p.PrintEvent(ev)
		}
	})

	devices, err := sess.engine.Devices(context.Background())
	if err != nil {
		return err
	}
	sortDevices(devices)

	if remember || rememberAll {
		if err := rememberDevices(devices, rememberAll); err != nil {
			return err
		}
	}

	if jsonOutput {
		infos := make([]server.DeviceInfo, 0, len(devices))
		for _, d := range devices {
			infos = append(infos, server.NewDeviceInfo(d))
		}
		if err := p.PrintJSON(infos); err != nil {
			return err
		}
		return out.Err
	}

	p.Newline()
	p.PrintDevices(devices)
	p.Newline()
	return printOutcome(p, "Device scan", out,
		ui.Param{Key: "Devices", Value: fmt.Sprint(len(devices))},
		ui.Param{Key: "Elapsed", Value: time.Since(started).Round(100 * time.Millisecond).String()},
	)
}

// printOutcome prints the result box for a finished run and returns the
// run's error, if any.
func printOutcome(p *ui.Printer, what string, out outcome, details ...ui.Param) error {
	switch {
	case out.Err != nil:
		p.PrintFailure(what+" failed", out.Err)
		return out.Err
	case out.Terminal == discovery.Canceled:
		p.PrintWarning(what+" stopped", details...)
	default:
		p.PrintSuccess(what+" finished", details...)
	}
	return nil
}

// reportFailure prints a failure box unless JSON output is selected, and
// returns err.
func reportFailure(p *ui.Printer, title string, err error) error {
	if !jsonOutput {
		p.PrintFailure(title, err)
	}
	return err
}

func rememberDevices(devices []bt.DeviceRecord, all bool) error {
	now := time.Now()
	changed := false
	for _, d := range devices {
		if settings.RememberSighting(d, now, all) {
			changed = true
		}
	}
	if !changed {
		return nil
	}
	if err := saveSettings(); err != nil {
		return fmt.Errorf("failed to save sightings: %w", err)
	}
	return nil
}

// sortDevices orders by signal strength, strongest first; devices without a
// reading go last in address order.
func sortDevices(devices []bt.DeviceRecord) {
	sort.SliceStable(devices, func(i, j int) bool {
		a, b := devices[i], devices[j]
		if a.HasRSSI != b.HasRSSI {
			return a.HasRSSI
		}
		if a.HasRSSI && a.RSSI != b.RSSI {
			return a.RSSI > b.RSSI
		}
		return a.Address.String() < b.Address.String()
	})
}

func durationOrForever(d time.Duration) string {
	if d == 0 {
		return "until stopped"
	}
	return d.String()
}
