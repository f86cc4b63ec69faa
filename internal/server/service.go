package server

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ingatd/internal/backend"
)

// State is the owning service's lifecycle phase.
type State string

const (
	StateStarting  State = "starting"
	StateListening State = "listening"
	StateDegraded  State = "degraded"
	StateStopped   State = "stopped"
)

const (
	selfCheckInterval = 30 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Service ties the HTTP server to the local backend's lifecycle. It moves
// through Starting, Listening, Degraded (store unreadable but still bound),
// and Stopped.
type Service struct {
	server *Server
	local  *backend.Local
	logger *zap.Logger

	mu    sync.RWMutex
	state State
}

// NewService wraps a constructed server.
func NewService(srv *Server, local *backend.Local, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		server: srv,
		local:  local,
		logger: logger,
		state:  StateStarting,
	}
}

// State returns the current lifecycle phase.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Service) setState(next State) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()

	if prev != next {
		s.logger.Info("service state changed",
			zap.String("from", string(prev)),
			zap.String("to", string(next)),
		)
	}
}

// Run starts the server and blocks until ctx is cancelled or the listener
// fails. The backend is closed on the way out, releasing the write lock.
func (s *Service) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Start()
	}()

	s.setState(StateListening)

	ticker := time.NewTicker(selfCheckInterval)
	defer ticker.Stop()

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err := <-errCh:
			runErr = err
			break loop
		case <-ticker.C:
			s.selfCheck(ctx)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("graceful shutdown failed", zap.Error(err))
	}

	if err := s.local.Close(); err != nil {
		s.logger.Warn("failed to close backend", zap.Error(err))
	}

	s.setState(StateStopped)
	return runErr
}

// selfCheck probes the backend and degrades rather than exits when the
// store stops answering. A degraded service keeps its port so the
// supervisor sees the failure through /health instead of a vanished
// listener.
func (s *Service) selfCheck(ctx context.Context) {
	if _, err := s.local.Health(ctx); err != nil {
		s.logger.Error("self check failed", zap.Error(err))
		s.setState(StateDegraded)
		return
	}
	if s.State() == StateDegraded {
		s.logger.Info("self check recovered")
	}
	s.setState(StateListening)
}
