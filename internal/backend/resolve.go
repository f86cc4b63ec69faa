package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ingatd/internal/config"
	"github.com/fyrsmithlabs/ingatd/internal/domain"
	"github.com/fyrsmithlabs/ingatd/internal/store"
)

// Resolve decides which backend this process uses. The decision is made
// exactly once: if a healthy owning service answers the probe, every
// operation goes through it; otherwise the process opens the embedded store
// directly and becomes the single writer. A held write lock in local mode is
// fatal and surfaces as ErrLockHeld.
func Resolve(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Backend, Mode, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	baseURL := cfg.Service.BaseURL()
	if err := Probe(ctx, baseURL, cfg.Service.ProbeTimeout.Duration()); err == nil {
		logger.Info("resolved remote backend", zap.String("service", baseURL))
		return NewRemote(baseURL, logger), ModeRemote, nil
	} else {
		logger.Debug("service probe failed, falling back to local store",
			zap.String("service", baseURL),
			zap.Error(err),
		)
	}

	st, err := store.Open(cfg.StorePath(), logger)
	if err != nil {
		return nil, "", err
	}

	settings, err := config.LoadSettings(cfg.SettingsPath(), cfg.Embedding)
	if err != nil {
		_ = st.Close()
		return nil, "", err
	}

	local, err := NewLocal(st, settings, logger)
	if err != nil {
		_ = st.Close()
		return nil, "", err
	}

	logger.Info("resolved local backend", zap.String("store", cfg.StorePath()))
	return local, ModeLocal, nil
}

// Probe checks whether a healthy owning service answers at baseURL within
// the timeout. Any failure, including an unhealthy or foreign responder,
// wraps ErrServiceUnavailable.
func Probe(ctx context.Context, baseURL string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("%w: failed to build probe request: %v", domain.ErrServiceUnavailable, err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: probe %s/health: %v", domain.ErrServiceUnavailable, baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: probe returned status %d", domain.ErrServiceUnavailable, resp.StatusCode)
	}

	var status HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("%w: probe returned malformed body: %v", domain.ErrServiceUnavailable, err)
	}
	if status.Status != "healthy" || status.Service != ServiceName {
		return fmt.Errorf("%w: responder at %s is not a healthy %s instance", domain.ErrServiceUnavailable, baseURL, ServiceName)
	}

	return nil
}
