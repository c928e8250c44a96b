package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/btscout/internal/bt"
	"github.com/muurk/btscout/internal/discovery"
	"github.com/muurk/btscout/internal/logging"
	"github.com/muurk/btscout/internal/version"
)

const (
	// ServiceType is the mDNS service type btscout servers announce.
	ServiceType = "_btscout._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultPort is the default event-stream port.
	DefaultPort = 8765

	// EventsPath is the WebSocket endpoint.
	EventsPath = "/events"

	// DevicesPath returns the current device snapshot as JSON.
	DevicesPath = "/devices"
)

// Config holds the server configuration
type Config struct {
	Host string
	Port int

	// Announce registers the server over mDNS as Instance.
	Announce bool
	Instance string

	// PresenceRate is the number of repeat sightings per second forwarded
	// for one device. Zero forwards everything.
	PresenceRate  float64
	PresenceBurst int

	// Backend is advertised in the mDNS TXT record.
	Backend string
}

// DeviceSource provides the device snapshot served on DevicesPath.
type DeviceSource interface {
	Devices(ctx context.Context) ([]bt.DeviceRecord, error)
}

// Server streams discovery events to WebSocket clients.
type Server struct {
	config   Config
	hub      *Hub
	source   DeviceSource
	upgrader websocket.Upgrader
	listener net.Listener
	httpSrv  *http.Server
}

// New creates a server. source may be nil, in which case DevicesPath
// returns 404.
func New(config Config, source DeviceSource) *Server {
	if config.Instance == "" {
		host, _ := os.Hostname()
		config.Instance = "btscout-" + strings.Split(host, ".")[0]
	}
	s := &Server{
		config: config,
		hub:    NewHub(config.PresenceRate, config.PresenceBurst),
		source: source,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Read-only event stream; any origin may subscribe.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.httpSrv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Hub returns the hub events are published to.
func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(EventsPath, s.handleEvents)
	if s.source != nil {
		mux.HandleFunc(DevicesPath, s.handleDevices)
	}
	return mux
}

// Listen binds the listening socket. Port 0 picks a free port.
func (s *Server) Listen() error {
	addr := net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = l
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Run publishes events to clients and serves until ctx is canceled or
// events is closed.
func (s *Server) Run(ctx context.Context, events <-chan discovery.Event) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	port := s.listener.Addr().(*net.TCPAddr).Port

	logging.Info("Starting btscout event server",
		zap.String("addr", s.listener.Addr().String()),
		zap.Bool("announce", s.config.Announce),
		zap.Float64("presence_rate", s.config.PresenceRate),
	)

	if s.config.Announce {
		zc, err := zeroconf.Register(s.config.Instance, ServiceType, ServiceDomain, port, s.txtRecords(), nil)
		if err != nil {
			return fmt.Errorf("failed to announce over mDNS: %w", err)
		}
		defer zc.Shutdown()
		logging.Info("Announced over mDNS", zap.String("instance", s.config.Instance), zap.String("service", ServiceType))
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.httpSrv.Serve(s.listener)
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return s.Shutdown(context.Background())
			}
			s.hub.Publish(ev)
		case <-ctx.Done():
			logging.Info("Shutdown requested, stopping server...")
			return s.Shutdown(context.Background())
		case err := <-errChan:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		}
	}
}

func (s *Server) txtRecords() []string {
	return []string{
		"version=" + version.Version,
		"path=" + EventsPath,
		"backend=" + s.config.Backend,
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	s.hub.closeAll()
	if err := s.httpSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Warn("Shutdown timeout, forcing close", zap.Error(err))
		return s.httpSrv.Close()
	}
	logging.Sync()
	return nil
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("Invalid WebSocket upgrade request",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}
	c := newClient(conn)
	s.hub.add(c)
	go c.writePump()
	go c.readPump(s.hub)
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.source.Devices(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	out := make([]DeviceInfo, 0, len(devices))
	for _, d := range devices {
		out = append(out, NewDeviceInfo(d))
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		logging.Debug("Failed to write device snapshot", zap.Error(err))
	}
}
