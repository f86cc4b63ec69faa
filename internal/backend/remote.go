package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ingatd/internal/domain"
)

// Default client timeouts. Health probes are deliberately short so an
// unreachable service is detected quickly instead of hanging the prober.
const (
	remoteRequestTimeout = 30 * time.Second
	remoteHealthTimeout  = 2 * time.Second
)

// Remote proxies every Backend operation to a running owning service over
// HTTP. Network failures surface as domain.ErrServiceUnavailable so callers
// can tell "no matches" apart from "could not ask".
type Remote struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewRemote creates a remote backend for the service at baseURL
// (e.g. "http://127.0.0.1:3200").
func NewRemote(baseURL string, logger *zap.Logger) *Remote {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Remote{
		baseURL: baseURL,
		client:  &http.Client{Timeout: remoteRequestTimeout},
		logger:  logger,
	}
}

// Ingest posts a new record to the service. Not retried: ingest is not
// idempotent.
func (r *Remote) Ingest(ctx context.Context, req IngestRequest) (*domain.ContextSummary, error) {
	var summary domain.ContextSummary
	if err := r.do(ctx, http.MethodPost, "/api/contexts", req, &summary, false); err != nil {
		return nil, err
	}
	return &summary, nil
}

// Search proxies a semantic search. Retried once on transient connection
// failure: search is idempotent.
func (r *Remote) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	var resp SearchResponse
	if err := r.do(ctx, http.MethodPost, "/api/search", req, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Recent lists recent summaries from the service.
func (r *Remote) Recent(ctx context.Context, limit int, project string) (*SummaryList, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if project != "" {
		q.Set("project", project)
	}
	path := "/api/contexts"
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var list SummaryList
	if err := r.do(ctx, http.MethodGet, path, nil, &list, true); err != nil {
		return nil, err
	}
	return &list, nil
}

// Projects lists distinct project names from the service.
func (r *Remote) Projects(ctx context.Context) ([]string, error) {
	var projects []string
	if err := r.do(ctx, http.MethodGet, "/api/projects", nil, &projects, true); err != nil {
		return nil, err
	}
	return projects, nil
}

// Health probes the service liveness endpoint with a short timeout.
func (r *Remote) Health(ctx context.Context) (*HealthStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, remoteHealthTimeout)
	defer cancel()

	var status HealthStatus
	if err := r.do(ctx, http.MethodGet, "/health", nil, &status, true); err != nil {
		return nil, err
	}
	return &status, nil
}

// Backends lists embedding backends from the service.
func (r *Remote) Backends(ctx context.Context) (*BackendList, error) {
	var list BackendList
	if err := r.do(ctx, http.MethodGet, "/api/backends", nil, &list, true); err != nil {
		return nil, err
	}
	return &list, nil
}

// SetBackend switches the active embedding backend on the service.
func (r *Remote) SetBackend(ctx context.Context, req SetBackendRequest) (*BackendList, error) {
	var list BackendList
	if err := r.do(ctx, http.MethodPut, "/api/backends", req, &list, false); err != nil {
		return nil, err
	}
	return &list, nil
}

// Close is a no-op; the remote backend holds no local resources.
func (r *Remote) Close() error { return nil }

// errorPayload is the service's error body shape.
type errorPayload struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// do issues one HTTP request, mapping transport failures to
// ErrServiceUnavailable and error payloads back onto the sentinel taxonomy.
// Idempotent operations are retried once on transient connection failure.
func (r *Remote) do(ctx context.Context, method, path string, body, out any, idempotent bool) error {
	err := r.doOnce(ctx, method, path, body, out)
	if err == nil || !idempotent {
		return err
	}
	if !errors.Is(err, domain.ErrServiceUnavailable) || ctx.Err() != nil {
		return err
	}

	r.logger.Debug("retrying idempotent request after transient failure",
		zap.String("method", method),
		zap.String("path", path),
	)
	return r.doOnce(ctx, method, path, body, out)
}

func (r *Remote) doOnce(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v; is the ingatd service running at %s?",
			domain.ErrServiceUnavailable, method, path, err, r.baseURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: failed to decode response from %s: %v",
				domain.ErrServiceUnavailable, path, err)
		}
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var payload errorPayload
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Code != "" {
		if sentinel := sentinelFor(payload.Code); sentinel != nil {
			return fmt.Errorf("%w: %s", sentinel, payload.Error)
		}
		return fmt.Errorf("service error %s: %s", payload.Code, payload.Error)
	}

	return fmt.Errorf("service returned status %d: %s", resp.StatusCode, string(raw))
}
