package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/btscout/internal/tui"
	"github.com/muurk/btscout/internal/ui"
)

// watchLETimeout defaults to scanning until stopped.
var watchLETimeout time.Duration

var errNotTerminal = errors.New("watch needs an interactive terminal; use 'btscout scan' instead")

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live device list",
	Long: `Open a live view of nearby devices.

The list fills in as devices are discovered and updates in place as their
signal strength or advertisement data changes. Press r to restart the scan,
s to stop it and q to quit.`,
	Example: `  # Watch with the built-in demo scenario
  btscout watch --backend replay

  # Low Energy only, scanning until stopped
  btscout watch --methods le --le-timeout 0`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchLETimeout, "le-timeout", 0, "Low Energy scan duration (0 = until stopped)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if !ui.IsTerminal() {
		return errNotTerminal
	}

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
	cfg.LowEnergyTimeout = watchLETimeout

	sess, err := startSession(cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	return tui.Watch(ctx, sess.engine, sess.engine.Events(), methods, settings.Nickname)
}
