package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/btscout/internal/discovery"
	"github.com/muurk/btscout/internal/remote"
	"github.com/muurk/btscout/internal/server"
	"github.com/muurk/btscout/internal/ui"
)

// Remote command flags
var (
	remoteServer   string
	remoteInstance string
	remoteTimeout  time.Duration
	remoteList     bool
)

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Follow the event stream of a btscout server",
	Long: `Connect to a 'btscout serve' instance and print its events.

Without --server the local network is browsed over mDNS and the first server
to answer is used (or the one named by --instance). --list only prints the
servers that answered.`,
	Example: `  # Find a server on the LAN and follow it
  btscout remote

  # List announced servers
  btscout remote --list

  # Connect directly
  btscout remote --server 192.168.1.20:8765 --json`,
	RunE: runRemote,
}

func init() {
	remoteCmd.Flags().StringVar(&remoteServer, "server", "", "Server address (host, host:port or ws:// URL)")
	remoteCmd.Flags().StringVar(&remoteInstance, "instance", "", "mDNS instance name to connect to")
	remoteCmd.Flags().DurationVar(&remoteTimeout, "timeout", remote.DefaultBrowseTimeout, "mDNS browse timeout")
	remoteCmd.Flags().BoolVar(&remoteList, "list", false, "List announced servers and exit")

	rootCmd.AddCommand(remoteCmd)
}

func runRemote(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := newPrinter()
	browser := remote.NewBrowser()
	browser.Timeout = remoteTimeout

	if remoteList {
		peers, err := browser.Browse(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return p.PrintJSON(peers)
		}
		if len(peers) == 0 {
			p.PrintWarning("No btscout servers found",
				ui.Param{Key: "Service", Value: server.ServiceType},
				ui.Param{Key: "Waited", Value: remoteTimeout.String()},
			)
			return nil
		}
		for _, peer := range peers {
			p.Println(fmt.Sprintf("  %s  %s  backend=%s", peer.Instance, peer.HostPort(), peer.GetMetadata("backend")))
		}
		return nil
	}

	target := remoteServer
	if target == "" {
		peer, err := browser.Find(ctx, remoteInstance)
		if err != nil {
			return err
		}
		target = peer.EventsURL()
	}
	url, err := remote.EventsURL(target)
	if err != nil {
		return err
	}

	client, err := remote.Dial(ctx, url)
	if err != nil {
		return err
	}
	defer client.Close()

	if !jsonOutput {
		p.PrintHeader("Remote events", "btscout remote", ui.Param{Key: "Server", Value: url})
	}
	return client.Stream(ctx, func(m server.Message) {
		if jsonOutput {
			_ = p.PrintJSON(m)
			return
		}
		if line := messageLine(m); line != "" {
			p.Println(line)
		}
	})
}

// messageLine formats a streamed message the way local events are printed.
func messageLine(m server.Message) string {
	prefix := ui.EventLineStyle.Render(m.Time.Local().Format("15:04:05") + " " + m.Scope + " ")
	switch m.Type {
	case discovery.DeviceDiscovered.String(), discovery.DeviceUpdated.String():
		if m.Device == nil {
			return ""
		}
		marker := ui.NewMarker
		if m.Type == discovery.DeviceUpdated.String() {
			marker = ui.UpdateMarker
		}
		line := marker + " " + m.Device.Address
		if m.Device.Name != "" {
			line += "  " + m.Device.Name
		}
		if m.Device.RSSI != nil {
			line += fmt.Sprintf("  %d dBm", *m.Device.RSSI)
		}
		if len(m.Fields) > 0 {
			line += " [" + strings.Join(m.Fields, "|") + "]"
		}
		return prefix + line
	case discovery.ServiceDiscovered.String():
		if m.Service == nil {
			return ""
		}
		return prefix + ui.NewMarker + " " + m.Service.Device + " → " + m.Service.Name
	case discovery.ErrorOccurred.String():
		if m.Error == nil {
			return prefix + ui.FailureMarker + " error"
		}
		return prefix + ui.ErrorMessageStyle.Render(ui.FailureMarker+" "+m.Error.Kind+": "+m.Error.Message)
	default:
		return prefix + m.Type
	}
}
