// Package server implements the client-facing side of the service: a
// non-blocking TCP event loop framing JSON requests, a worker pool running
// the handlers, and the dispatcher mapping requests onto the store.
package server

import (
	"context"
	"regexp"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mattia055/Hotelier2.0/internal/config"
	"github.com/Mattia055/Hotelier2.0/internal/guard"
	"github.com/Mattia055/Hotelier2.0/internal/store"
)

// Server ties the reactor, the worker pool and the CPU guard together.
type Server struct {
	reactor  *Reactor
	pool     *WorkerPool
	cpuGuard *guard.CPUGuard
	log      zerolog.Logger
	cancel   context.CancelFunc
}

// New assembles a server from configuration. The store must already be
// loaded.
func New(cfg *config.Config, st *store.Store, log zerolog.Logger) (*Server, error) {
	usernameRe, err := regexp.Compile(cfg.UsernamePattern)
	if err != nil {
		return nil, err
	}

	dispatcher := NewDispatcher(st, DispatcherConfig{
		UsernamePattern: usernameRe,
		SaltBytes:       cfg.SaltBytes,
		BatchSize:       cfg.MaxBatchSize,
	}, log)

	pool := NewWorkerPool(cfg.WorkerCount, cfg.WorkerQueue, log)
	cpuGuard := guard.New(cfg.CPURejectThreshold, 5*time.Second, log)

	reactor, err := NewReactor(ReactorConfig{
		Addr:           cfg.Addr,
		MaxConnections: cfg.MaxConnections,
		MaxMessageSize: cfg.MaxMessageSize,
		PoolThreshold:  cfg.PoolThreshold,
		PoolCapacity:   cfg.PoolCapacity,
		AcceptRate:     cfg.AcceptRate,
		AcceptBurst:    cfg.AcceptBurst,
	}, st, dispatcher, pool, cpuGuard, log)
	if err != nil {
		return nil, err
	}

	return &Server{
		reactor:  reactor,
		pool:     pool,
		cpuGuard: cpuGuard,
		log:      log.With().Str("component", "server").Logger(),
	}, nil
}

// Start launches the background goroutines. It returns immediately; the
// event loop runs until Stop.
func (s *Server) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.cpuGuard.Start(ctx)
	s.pool.Start(ctx)
	go s.reactor.Run()
	s.log.Info().Msg("server started")
}

// Stop shuts the event loop and the workers down. Open connections are
// closed; their users are marked logged out.
func (s *Server) Stop() {
	s.reactor.Close()
	if s.cancel != nil {
		s.cancel()
	}
	s.pool.Stop()
	s.log.Info().Msg("server stopped")
}

// ConnCount reports the number of open client connections.
func (s *Server) ConnCount() int {
	return s.reactor.ConnCount()
}
