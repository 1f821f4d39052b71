/*
Package xplorer implements an embeddable debug RPC server with a CLI
client. An application links it in, mounts the bundled introspection
endpoints (live UI tree, file sandbox, key-value preferences, permission
states, session logs), and serves them over two transports at once: plain
HTTP for local-network access and a QUIC endpoint addressed by a
persistent cryptographic node identity.

Router

Endpoints are registered on a Router, with sub-routers mounted under path
prefixes:

	rt := xplorer.NewRouter("my app")
	rt.Register("/info", "returns build info", nil, false,
		func(req *xplorer.Request) *xplorer.Response {
			return xplorer.JSONResponse(xplorer.StatusOK, buildInfo())
		})
	root.Mount("/myapp", rt)

Routes registered with runsOnMainThread=true are trampolined onto the
process's single UI execution context before their handler runs, since
UI-introspection code must never touch the view tree from a serving
goroutine.

Server

A Server owns the root Router, the main-thread dispatcher, and any number
of transports:

	s := xplorer.NewServer(xplorer.DefaultConfig())
	s.AddTransport(xplorer.NewHTTPTransport("localhost:8080", s.Router, s.Logger, nil))
	s.Start(context.Background())

The P2P transport persists a 32-byte Ed25519 identity under its storage
path; the derived public key, rendered as hex, is the stable node identity
clients connect by.
*/
package xplorer

import (
	"context"
	"fmt"
	"sync"
)

// Server composes a Router with zero or more Transports and owns their
// shared lifecycle. It is a thin façade: every transport is independently
// pluggable, and all of them dispatch through the one shared Router.
type Server struct {
	cfg    Config
	Router *Router
	Logger *Logger

	main *MainThreadDispatcher

	transportsMu sync.Mutex
	transports   []Transport

	shutdownMu   sync.Mutex
	shutdownJobs []func()
}

// NewServer builds a Server from cfg: a root Router with a MainThreadDispatcher
// attached, and a Logger rendering in cfg's configured format. Transports are
// added afterward via AddTransport, so callers can wire an HTTPTransport, a
// P2PTransport, both, or neither (e.g. in tests that only exercise the
// Router directly).
func NewServer(cfg Config) *Server {
	logger := NewLogger(cfg.AppName, cfg.LoggerFormat)
	main := NewMainThreadDispatcher()

	root := NewRouter("xplorer debug server root").
		WithMainThreadDispatcher(main).
		WithDebugMode(cfg.DebugMode).
		WithHandlerTimeout(cfg.HandlerTimeout)

	return &Server{
		cfg:    cfg,
		Router: root,
		Logger: logger,
		main:   main,
	}
}

// AddConfiguredTransports wires the transports the Server's Config
// describes: an HTTPTransport on HTTPAddress when it is non-empty, and a
// P2PTransport on P2PAddress when P2PEnabled, persisting identity under
// P2PStoragePath and honoring P2PForceNewIdentity. Callers that need a
// Resolver, a ResponseCache, or different addresses construct transports
// themselves and use AddTransport directly.
func (s *Server) AddConfiguredTransports() {
	if s.cfg.HTTPAddress != "" {
		s.AddTransport(NewHTTPTransport(s.cfg.HTTPAddress, s.Router, s.Logger, nil))
	}
	if s.cfg.P2PEnabled {
		p2p := NewP2PTransport(s.cfg.P2PAddress, s.Router, s.Logger, NewIdentity(s.cfg.P2PStoragePath), nil)
		if s.cfg.P2PForceNewIdentity {
			p2p.ForceNewIdentity()
		}
		s.AddTransport(p2p)
	}
}

// AddTransport registers t to be started/stopped alongside the rest of the
// Server's transports. It is not safe to call once Start has been called.
func (s *Server) AddTransport(t Transport) {
	s.transportsMu.Lock()
	defer s.transportsMu.Unlock()
	s.transports = append(s.transports, t)
}

// Start starts every registered Transport. If any fails, the transports
// already started are stopped before Start returns the failing error, so a
// partially-started Server is never left running.
func (s *Server) Start(ctx context.Context) error {
	s.transportsMu.Lock()
	defer s.transportsMu.Unlock()

	started := make([]Transport, 0, len(s.transports))
	for _, t := range s.transports {
		if err := t.Start(ctx); err != nil {
			for _, u := range started {
				u.Stop(ctx)
			}
			return fmt.Errorf("xplorer: start transport: %w", err)
		}
		started = append(started, t)
	}

	s.Logger.Info("server started")
	return nil
}

// Stop stops every registered Transport (in reverse registration order),
// then runs every shutdown job concurrently and waits for them before the
// main-thread dispatcher is torn down.
func (s *Server) Stop(ctx context.Context) error {
	s.transportsMu.Lock()
	var firstErr error
	for i := len(s.transports) - 1; i >= 0; i-- {
		if err := s.transports[i].Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.transportsMu.Unlock()

	s.runShutdownJobs()
	s.main.Stop()

	s.Logger.Info("server stopped")
	return firstErr
}

// AddShutdownJob registers f to run exactly once, concurrently with every
// other shutdown job, when Stop is called. The returned id can be passed to
// RemoveShutdownJob.
func (s *Server) AddShutdownJob(f func()) int {
	s.shutdownMu.Lock()
	defer s.shutdownMu.Unlock()
	s.shutdownJobs = append(s.shutdownJobs, f)
	return len(s.shutdownJobs) - 1
}

// RemoveShutdownJob removes the shutdown job previously returned by
// AddShutdownJob.
func (s *Server) RemoveShutdownJob(id int) {
	s.shutdownMu.Lock()
	defer s.shutdownMu.Unlock()
	if id >= 0 && id < len(s.shutdownJobs) {
		s.shutdownJobs[id] = nil
	}
}

func (s *Server) runShutdownJobs() {
	s.shutdownMu.Lock()
	jobs := s.shutdownJobs
	s.shutdownMu.Unlock()

	var wg sync.WaitGroup
	for _, job := range jobs {
		if job == nil {
			continue
		}
		wg.Add(1)
		go func(job func()) {
			defer wg.Done()
			job()
		}(job)
	}
	wg.Wait()
}

// MainThreadDispatcher returns the dispatcher the Server's root Router was
// built with, so bundled endpoints (and their tests) can call RunOnMainThread
// directly when simulating UI-thread work.
func (s *Server) MainThreadDispatcher() *MainThreadDispatcher {
	return s.main
}
