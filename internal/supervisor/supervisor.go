// Package supervisor keeps the owning ingatd service alive. It polls the
// health endpoint, restarts the service after a run of consecutive failures,
// and backs off exponentially when restarts themselves keep failing.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ingatd/internal/backend"
	"github.com/fyrsmithlabs/ingatd/internal/config"
)

// Prober checks whether a healthy service is answering.
type Prober func(ctx context.Context) error

// Starter launches the service and returns its pid.
type Starter func(ctx context.Context) (int, error)

// Supervisor monitors and restarts the owning service.
type Supervisor struct {
	cfg       config.SupervisorConfig
	statePath string
	logger    *zap.Logger

	probe   Prober
	start   Starter
	tracker *tracker
}

// Option customizes a Supervisor. Used by tests to inject probes and
// starters.
type Option func(*Supervisor)

// WithProber replaces the default HTTP health probe.
func WithProber(p Prober) Option {
	return func(s *Supervisor) { s.probe = p }
}

// WithStarter replaces the default detached process spawn.
func WithStarter(st Starter) Option {
	return func(s *Supervisor) { s.start = st }
}

// New creates a supervisor for the service described by cfg.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Supervisor{
		cfg:       cfg.Supervisor,
		statePath: cfg.SupervisorStatePath(),
		logger:    logger,
		tracker: newTracker(
			cfg.Supervisor.FailureThreshold,
			cfg.Supervisor.InitialBackoff.Duration(),
			cfg.Supervisor.MaxBackoff.Duration(),
		),
	}

	baseURL := cfg.Service.BaseURL()
	probeTimeout := cfg.Service.ProbeTimeout.Duration()
	s.probe = func(ctx context.Context) error {
		return backend.Probe(ctx, baseURL, probeTimeout)
	}
	s.start = func(ctx context.Context) (int, error) {
		return s.spawnService(ctx)
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run supervises until ctx is cancelled. The service is started immediately
// if no healthy instance answers the first probe.
func (s *Supervisor) Run(ctx context.Context) error {
	s.reconcile(ctx)

	ticker := time.NewTicker(s.cfg.PollInterval.Duration())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.persist(PhaseStopped, 0)
			return ctx.Err()
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

// reconcile compares persisted state against reality at startup. A state
// file claiming a running service is only trusted if the probe agrees.
func (s *Supervisor) reconcile(ctx context.Context) {
	state, err := LoadState(s.statePath)
	if err != nil {
		s.logger.Warn("failed to load supervisor state", zap.Error(err))
	}

	if err := s.probe(ctx); err == nil {
		s.logger.Info("service already healthy", zap.Int("recorded_pid", state.ServicePID))
		s.persist(PhaseMonitoring, state.ServicePID)
		return
	}

	if state.Phase != "" {
		s.logger.Info("persisted state is stale, service not answering",
			zap.String("phase", string(state.Phase)),
			zap.Int("recorded_pid", state.ServicePID),
		)
	}

	s.restart(ctx)
}

// poll runs one health check cycle.
func (s *Supervisor) poll(ctx context.Context) {
	if err := s.probe(ctx); err == nil {
		if s.tracker.Failures() > 0 {
			s.logger.Info("service recovered")
		}
		s.tracker.RecordSuccess()
		return
	} else {
		s.logger.Warn("health probe failed",
			zap.Int("consecutive", s.tracker.Failures()+1),
			zap.Error(err),
		)
	}

	if s.tracker.RecordFailure() {
		s.restart(ctx)
	}
}

func (s *Supervisor) restart(ctx context.Context) {
	s.persist(PhaseRestarting, 0)

	pid, err := s.start(ctx)
	s.tracker.RecordRestart()
	if err != nil {
		s.logger.Error("failed to start service",
			zap.Duration("next_attempt_backoff", s.tracker.CurrentBackoff()),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("service started",
		zap.Int("pid", pid),
		zap.Duration("backoff", s.tracker.CurrentBackoff()),
	)
	s.persist(PhaseMonitoring, pid)
}

func (s *Supervisor) persist(phase Phase, pid int) {
	err := SaveState(s.statePath, PersistedState{
		Phase:      phase,
		ServicePID: pid,
		Failures:   s.tracker.Failures(),
	})
	if err != nil {
		s.logger.Warn("failed to persist supervisor state", zap.Error(err))
	}
}

// spawnService launches this binary's serve subcommand as a detached
// process so the service outlives the supervisor's controlling terminal.
func (s *Supervisor) spawnService(_ context.Context) (int, error) {
	binary := s.cfg.ServiceBinary
	args := []string{"serve"}
	if binary == "" {
		self, err := os.Executable()
		if err != nil {
			return 0, fmt.Errorf("failed to locate own binary: %w", err)
		}
		binary = self
	}
	return startDetached(binary, args)
}
