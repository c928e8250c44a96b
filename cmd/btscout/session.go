package main

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/btscout/internal/backend/bluez"
	"github.com/muurk/btscout/internal/backend/replay"
	"github.com/muurk/btscout/internal/backend/tinyble"
	"github.com/muurk/btscout/internal/bt"
	"github.com/muurk/btscout/internal/config"
	"github.com/muurk/btscout/internal/discovery"
	"github.com/muurk/btscout/internal/logging"
	"github.com/muurk/btscout/internal/ui"
)

// stopGrace bounds how long a command waits for Canceled after Ctrl-C.
const stopGrace = 10 * time.Second

// backendFor returns the configured backend name, or the platform default.
func backendFor(s *config.Settings) string {
	if s.Backend != "" {
		return s.Backend
	}
	if runtime.GOOS == "linux" {
		return "bluez"
	}
	return "tinyble"
}

// openBackend opens the backend the settings select.
func openBackend(s *config.Settings) (bt.Backend, error) {
	var (
		b   bt.Backend
		err error
	)
	switch name := backendFor(s); name {
	case "bluez":
		var z *bluez.Backend
		if z, err = bluez.Open(bluez.Options{Adapter: s.Adapter}); err == nil {
			b = z
		}
	case "tinyble":
		var t *tinyble.Backend
		if t, err = tinyble.Open(); err == nil {
			b = t
		}
	case "replay":
		var r *replay.Backend
		if s.Scenario != "" {
			r, err = replay.Open(s.Scenario)
		} else {
			r, err = replay.Demo()
		}
		if err == nil {
			b = r
		}
	default:
		err = fmt.Errorf("unknown backend %q", name)
	}
	return b, err
}

// session is an engine running over an open backend. The engine has its own
// context so that a canceled command can still stop a scan cleanly.
type session struct {
	backend bt.Backend
	engine  *discovery.Engine
	cancel  context.CancelFunc
	done    chan error
}

func startSession(cfg discovery.Config) (*session, error) {
	backend, err := openBackend(settings)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		backend: backend,
		engine:  discovery.NewEngine(backend, cfg),
		cancel:  cancel,
		done:    make(chan error, 1),
	}
	go func() { s.done <- s.engine.Run(ctx) }()
	return s, nil
}

// Close stops the engine and releases the backend.
func (s *session) Close() error {
	s.cancel()
	err := <-s.done
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if cerr := s.backend.Close(); cerr != nil {
		logging.Warn("Failed to close backend", zap.String("backend", s.backend.Name()), zap.Error(cerr))
	}
	return err
}

// outcome is how a session run ended.
type outcome struct {
	Terminal discovery.EventType
	Err      error // first ErrorOccurred of the run
}

// drain forwards events to fn until the run in scope ends. When ctx is
// canceled first, stop is called once and drain keeps waiting for the
// acknowledgment, for at most stopGrace.
func (s *session) drain(ctx context.Context, scope discovery.Scope, stop func(context.Context) error, fn func(discovery.Event)) outcome {
	var (
		out     outcome
		timeout <-chan time.Time
		done    = ctx.Done()
		events  = s.engine.Events()
	)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				out.Terminal = discovery.Canceled
				return out
			}
			if fn != nil {
				fn(ev)
			}
			if ev.Scope != scope {
				continue
			}
			if ev.Type == discovery.ErrorOccurred && out.Err == nil {
				out.Err = ev.Err
			}
			if ev.Type.Terminal() {
				out.Terminal = ev.Type
				return out
			}
		case <-done:
			done = nil
			logging.Info("Interrupted, stopping discovery")
			if err := stop(context.Background()); err != nil {
				logging.Warn("Stop request failed", zap.Error(err))
			}
			timeout = time.After(stopGrace)
		case <-timeout:
			logging.Warn("Backend did not acknowledge stop", zap.Duration("waited", stopGrace))
			out.Terminal = discovery.Canceled
			return out
		}
	}
}

func newPrinter() *ui.Printer {
	p := ui.NewPrinter(nil)
	if settings != nil {
		p.WithNicknames(settings.Nickname)
	}
	return p
}
