// Package supervisor wires the configured entrypoints, the reconciler,
// and the optional introspection/metrics servers into one process
// lifecycle: ordered startup, a fatal-error channel that triggers
// self-initiated shutdown, and a bounded drain on the way out.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// shutdownGrace bounds, separately, each entrypoint http.Server.Shutdown
// call and the final wait for the listener, reconciler and ancillary
// goroutines to return once ctx is cancelled — the teacher's
// drainTimeout under another name.
const shutdownGrace = 30 * time.Second

// EntryPoint is one listener the supervisor binds: a name (for logging
// and error attribution), the address to listen on, and the handler that
// serves it — typically a *proxy.Hook bound to that name's routing table.
type EntryPoint struct {
	Name    string
	Addr    string
	Handler http.Handler
}

// Reconciler is the subset of reconcile.Reconciler the supervisor drives.
type Reconciler interface {
	Run(ctx context.Context) error
}

// Server is the shape shared by metrics.Server and introspect's HTTP
// server: the supervisor drives any ancillary component through it.
type Server interface {
	Run(ctx context.Context) error
}

// Supervisor owns every entrypoint listener plus the reconciler and any
// ancillary servers (metrics, introspection), and runs them together
// under one cancellation signal.
type Supervisor struct {
	entrypoints []EntryPoint
	reconciler  Reconciler
	ancillary   []Server
	listeners   ListenerController
	logger      *slog.Logger
}

// New builds a Supervisor. ancillary holds any additional Server-shaped
// components to run alongside the entrypoints and reconciler (a metrics
// server, an introspection server) — the caller decides which are
// enabled, per the CLI's --api-enabled/--metrics-enabled flags.
func New(entrypoints []EntryPoint, reconciler Reconciler, ancillary []Server, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		entrypoints: entrypoints,
		reconciler:  reconciler,
		ancillary:   ancillary,
		listeners:   NewListenerController(),
		logger:      logger,
	}
}

// WithListenerController overrides the default real-socket
// ListenerController, for tests that exercise Run without binding real
// ports.
func (s *Supervisor) WithListenerController(lc ListenerController) *Supervisor {
	s.listeners = lc
	return s
}

// Run binds every entrypoint listener and starts the reconciler and
// ancillary servers, then blocks until ctx is cancelled or a fatal error
// arrives on the internal single-slot channel (spec.md §7's ClusterClient/
// WatchCreate fatal class, coalesced the way the teacher's
// Reconciler.TriggerReconcile coalesces repeat signals). On return, every
// component has been given shutdownGrace to drain.
func (s *Supervisor) Run(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	fatal := make(chan error, 1)
	reportFatal := func(err error) {
		select {
		case fatal <- err:
		default:
		}
	}

	var wg sync.WaitGroup
	var servers []*http.Server

	for _, ep := range s.entrypoints {
		ln, err := s.listeners.Listen(ep.Addr, nil)
		if err != nil {
			return fmt.Errorf("supervisor: bind entrypoint %q on %s: %w", ep.Name, ep.Addr, err)
		}

		srv := &http.Server{Handler: h2c.NewHandler(ep.Handler, &http2.Server{})}
		servers = append(servers, srv)

		wg.Add(1)
		go func(name string, srv *http.Server, ln net.Listener) {
			defer wg.Done()
			s.logger.Info("entrypoint listening", "component", "supervisor", "entrypoint", name, "addr", ln.Addr().String())
			if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
				s.logger.Error("entrypoint listener stopped", "component", "supervisor", "entrypoint", name, "error", err)
				reportFatal(fmt.Errorf("supervisor: entrypoint %q: %w", name, err))
			}
		}(ep.Name, srv, ln)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.reconciler.Run(ctx); err != nil && err != context.Canceled {
			s.logger.Error("reconciler stopped", "component", "supervisor", "error", err)
			reportFatal(fmt.Errorf("supervisor: reconciler: %w", err))
		}
	}()

	for _, anc := range s.ancillary {
		wg.Add(1)
		go func(anc Server) {
			defer wg.Done()
			if err := anc.Run(ctx); err != nil && err != context.Canceled {
				s.logger.Warn("ancillary server stopped", "component", "supervisor", "error", err)
			}
		}(anc)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-fatal:
		runErr = err
		stop()
	}

	for _, srv := range servers {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownGrace):
		s.logger.Warn("drain timeout exceeded, forcing exit", "component", "supervisor")
	}

	return runErr
}
