package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/btscout/internal/bt"
	"github.com/muurk/btscout/internal/discovery"
	"github.com/muurk/btscout/internal/server"
	"github.com/muurk/btscout/internal/ui"
)

// Services command flags
var (
	serviceMode  string
	serviceUUIDs []string
)

var servicesCmd = &cobra.Command{
	Use:   "services [ADDRESS...]",
	Short: "Discover the services of remote devices",
	Long: `Look up the services offered by one or more remote devices.

With no addresses a device discovery runs first and every device it finds is
queried in turn. --mode minimal reads the platform's cached UUID list without
radio traffic; --mode full runs a live query against each device.`,
	Example: `  # Services of every nearby device, from the platform cache
  btscout services

  # Live query of one device
  btscout services 00:1A:7D:DA:71:13 --mode full

  # Only devices offering the serial port profile
  btscout services --uuid 1101`,
	RunE: runServices,
}

func init() {
	servicesCmd.Flags().StringVar(&serviceMode, "mode", "minimal", "Lookup mode (minimal, full)")
	servicesCmd.Flags().StringSliceVar(&serviceUUIDs, "uuid", nil, "Only report services matching these UUIDs (repeatable)")

	rootCmd.AddCommand(servicesCmd)
}

func runServices(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req, err := serviceRequest(args)
	if err != nil {
		return err
	}
	cfg, err := settings.DiscoveryOptions()
	if err != nil {
		return err
	}

	p := newPrinter()
	if !jsonOutput {
		targets := "nearby devices"
		if len(req.Devices) > 0 {
			targets = fmt.Sprintf("%d device(s)", len(req.Devices))
		}
		p.PrintHeader("Service discovery", "btscout services",
			ui.Param{Key: "Backend", Value: backendFor(settings)},
			ui.Param{Key: "Mode", Value: req.Mode.String()},
			ui.Param{Key: "Targets", Value: targets},
		)
	}

	sess, err := startSession(cfg)
	if err != nil {
		return reportFailure(p, "Could not open backend", err)
	}
	defer sess.Close()

	if err := sess.engine.StartServices(ctx, req); err != nil {
		return reportFailure(p, "Service discovery did not start", err)
	}

	started := time.Now()
	out := sess.drain(ctx, discovery.ScopeServices, sess.engine.StopServices, func(ev discovery.Event) {
		if !jsonOutput && ev.Scope == discovery.ScopeServices {
			p.PrintEvent(ev)
		}
	})

	services, err := sess.engine.Services(context.Background())
	if err != nil {
		return err
	}

	if jsonOutput {
		infos := make([]server.ServiceInfo, 0, len(services))
		for _, s := range services {
			infos = append(infos, server.NewServiceInfo(s))
		}
		if err := p.PrintJSON(infos); err != nil {
			return err
		}
		return out.Err
	}

	p.Newline()
	p.PrintServices(services)
	p.Newline()
	return printOutcome(p, "Service discovery", out,
		ui.Param{Key: "Services", Value: fmt.Sprint(len(services))},
		ui.Param{Key: "Elapsed", Value: time.Since(started).Round(100 * time.Millisecond).String()},
	)
}

// serviceRequest builds a request from the command line.
func serviceRequest(args []string) (discovery.ServiceRequest, error) {
	var req discovery.ServiceRequest

	mode, err := discovery.ParseMode(serviceMode)
	if err != nil {
		return req, err
	}
	req.Mode = mode

	for _, arg := range args {
		addr, err := bt.ParseAddress(arg)
		if err != nil {
			return req, err
		}
		req.Devices = append(req.Devices, addr)
	}
	for _, s := range serviceUUIDs {
		u, err := bt.ParseUUID(s)
		if err != nil {
			return req, err
		}
		req.UUIDFilter = append(req.UUIDFilter, u)
	}

	methods, err := settings.Methods()
	if err != nil {
		return req, err
	}
	req.DeviceMethods = methods
	return req, nil
}
