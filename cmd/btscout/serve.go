package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/muurk/btscout/internal/bt"
	"github.com/muurk/btscout/internal/discovery"
	"github.com/muurk/btscout/internal/logging"
	"github.com/muurk/btscout/internal/server"
	"github.com/muurk/btscout/internal/ui"
)

// Serve command flags
var (
	serveHost     string
	servePort     int
	serveAnnounce bool
	serveInstance string
)

// restartDelay is the pause between a finished scan and the next one.
var restartDelay = 2 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Stream discovery events over WebSocket",
	Long: `Run device discovery continuously and stream every event as JSON to
WebSocket clients.

Clients connect to ws://HOST:PORT/events. The current device list is also
available as JSON from http://HOST:PORT/devices. Repeat sightings of a device
that only change its RSSI are rate limited per device (see presence_rate in the
config file).

With --announce the server registers itself over mDNS as _btscout._tcp so that
'btscout remote' can find it.`,
	Example: `  # Serve on the default port
  btscout serve

  # Announce over mDNS under a custom name
  btscout serve --announce --instance lab-pi

  # Serve the demo scenario on a custom port
  btscout serve --backend replay --port 9000`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen address (empty = all interfaces)")
	serveCmd.Flags().IntVar(&servePort, "port", server.DefaultPort, "Listen port")
	serveCmd.Flags().BoolVar(&serveAnnounce, "announce", false, "Announce the server over mDNS")
	serveCmd.Flags().StringVar(&serveInstance, "instance", "", "mDNS instance name (default: btscout-<hostname>)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
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
	cfg.LowEnergyTimeout = 0

	srvCfg := server.Config{
		Host:          settings.Server.Host,
		Port:          settings.Server.Port,
		Announce:      settings.Server.Announce,
		Instance:      settings.Server.Instance,
		PresenceRate:  settings.Server.PresenceRate,
		PresenceBurst: settings.Server.PresenceBurst,
		Backend:       backendFor(settings),
	}
	flags := cmd.Flags()
	if flags.Changed("host") {
		srvCfg.Host = serveHost
	}
	if flags.Changed("port") || srvCfg.Port == 0 {
		srvCfg.Port = servePort
	}
	if flags.Changed("announce") {
		srvCfg.Announce = serveAnnounce
	}
	if flags.Changed("instance") {
		srvCfg.Instance = serveInstance
	}

	sess, err := startSession(cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	srv := server.New(srvCfg, sess.engine)
	if err := srv.Listen(); err != nil {
		return err
	}

	p := newPrinter()
	p.PrintHeader("Event server", "btscout serve",
		ui.Param{Key: "Backend", Value: srvCfg.Backend},
		ui.Param{Key: "Methods", Value: methods.String()},
		ui.Param{Key: "Events", Value: fmt.Sprintf("ws://%s%s", srv.Addr(), server.EventsPath)},
		ui.Param{Key: "Devices", Value: fmt.Sprintf("http://%s%s", srv.Addr(), server.DevicesPath)},
		ui.Param{Key: "mDNS", Value: announceLabel(srvCfg)},
	)

	forwarded := make(chan discovery.Event, sess.engine.Config().EventBuffer)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, forwarded)
	})
	g.Go(func() error {
		defer close(forwarded)
		return supervise(gctx, sess.engine, methods, forwarded)
	})
	return g.Wait()
}

// scanner is the part of the engine supervise drives.
type scanner interface {
	StartDevices(ctx context.Context, methods bt.Method) error
	Events() <-chan discovery.Event
}

// supervise keeps device discovery running. Every event is forwarded to out.
// A run that ends is restarted after restartDelay; one that failed, or a
// start that was rejected, is retried with exponential backoff.
func supervise(ctx context.Context, eng scanner, methods bt.Method, out chan<- discovery.Event) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = time.Minute
	b.MaxElapsedTime = 0

	var restart <-chan time.Time
	start := func() {
		err := eng.StartDevices(ctx, methods)
		if err == nil || ctx.Err() != nil {
			return
		}
		wait := b.NextBackOff()
		logging.Warn("Device discovery did not start, retrying",
			zap.Error(err), zap.Duration("retry_in", wait))
		restart = time.After(wait)
	}
	start()

	failed := false
	events := eng.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-restart:
			restart = nil
			start()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return nil
			}
			if ev.Scope != discovery.ScopeDevices {
				continue
			}
			switch ev.Type {
			case discovery.DeviceDiscovered:
				b.Reset()
			case discovery.ErrorOccurred:
				failed = true
			case discovery.Finished, discovery.Canceled:
				wait := restartDelay
				if failed {
					wait = b.NextBackOff()
				}
				failed = false
				logging.Debug("Restarting device discovery", zap.String("session", ev.Session), zap.Duration("in", wait))
				restart = time.After(wait)
			}
		}
	}
}

func announceLabel(cfg server.Config) string {
	if !cfg.Announce {
		return "off"
	}
	if cfg.Instance == "" {
		return server.ServiceType
	}
	return cfg.Instance + "." + server.ServiceType
}
