// Package backend provides the storage capability interface of ingatd and
// its two implementations: Local (owns the embedded store directly) and
// Remote (proxies every operation to a running owning service over HTTP).
//
// Which implementation a process gets is decided exactly once at startup by
// Resolve; everything above the Backend interface is mode-agnostic.
package backend

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/ingatd/internal/domain"
	"github.com/fyrsmithlabs/ingatd/internal/embedding"
)

// Mode records which backend a process resolved to. The decision is made
// once per process lifetime and never silently revisited.
type Mode string

const (
	ModeLocal  Mode = "local"
	ModeRemote Mode = "remote"
)

// Backend is the storage capability consumed by the UI, CLI, and service
// layers. Both implementations return the same result and error shapes.
type Backend interface {
	Ingest(ctx context.Context, req IngestRequest) (*domain.ContextSummary, error)
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)
	Recent(ctx context.Context, limit int, project string) (*SummaryList, error)
	Projects(ctx context.Context) ([]string, error)
	Health(ctx context.Context) (*HealthStatus, error)
	Backends(ctx context.Context) (*BackendList, error)
	SetBackend(ctx context.Context, req SetBackendRequest) (*BackendList, error)
	Close() error
}

// IngestRequest is the payload accepted when persisting a new record.
type IngestRequest struct {
	Project  string             `json:"project"`
	IDE      string             `json:"ide"`
	FilePath string             `json:"file_path,omitempty"`
	Language string             `json:"language,omitempty"`
	Summary  string             `json:"summary"`
	Body     string             `json:"body"`
	Tags     []string           `json:"tags,omitempty"`
	Kind     domain.ContextKind `json:"kind"`
}

// SearchRequest bridges the search form and the engine.
type SearchRequest struct {
	Prompt  string              `json:"prompt"`
	Filters domain.QueryFilters `json:"filters,omitempty"`
	Limit   int                 `json:"limit,omitempty"`
}

// SearchResponse is the envelope for search results.
type SearchResponse struct {
	Query   string                `json:"query"`
	Results []domain.SearchResult `json:"results"`
}

// SummaryList is the envelope for history listings.
type SummaryList struct {
	Items []domain.ContextSummary `json:"items"`
}

// HealthStatus is the liveness report.
type HealthStatus struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Model   string `json:"model,omitempty"`
}

// ServiceName identifies this service in health responses.
const ServiceName = "ingatd"

// BackendList reports the selectable embedding backends and which is active.
type BackendList struct {
	Active  string                 `json:"active"`
	Options []embedding.Descriptor `json:"options"`
}

// SetBackendRequest switches the active embedding backend.
type SetBackendRequest struct {
	BackendID     string `json:"backend_id"`
	ModelOverride string `json:"model_override,omitempty"`
}

// Wire error codes. The HTTP surface serializes errors as {error, code};
// the remote backend maps codes back onto the sentinel taxonomy so callers
// see identical errors in both modes.
const (
	CodeValidation         = "VALIDATION"
	CodeEmbedding          = "EMBEDDING"
	CodeStorage            = "STORAGE"
	CodeNotFound           = "NOT_FOUND"
	CodeLockHeld           = "LOCK_HELD"
	CodeUnknownBackend     = "UNKNOWN_BACKEND"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeInternal           = "INTERNAL"
)

// CodeFor maps a domain error onto its wire code.
func CodeFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return CodeValidation
	case errors.Is(err, domain.ErrEmbedding):
		return CodeEmbedding
	case errors.Is(err, domain.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, domain.ErrLockHeld):
		return CodeLockHeld
	case errors.Is(err, domain.ErrUnknownBackend):
		return CodeUnknownBackend
	case errors.Is(err, domain.ErrServiceUnavailable):
		return CodeServiceUnavailable
	case errors.Is(err, domain.ErrStorage):
		return CodeStorage
	default:
		return CodeInternal
	}
}

// sentinelFor maps a wire code back onto the sentinel it came from.
func sentinelFor(code string) error {
	switch code {
	case CodeValidation:
		return domain.ErrValidation
	case CodeEmbedding:
		return domain.ErrEmbedding
	case CodeNotFound:
		return domain.ErrNotFound
	case CodeLockHeld:
		return domain.ErrLockHeld
	case CodeUnknownBackend:
		return domain.ErrUnknownBackend
	case CodeServiceUnavailable:
		return domain.ErrServiceUnavailable
	case CodeStorage:
		return domain.ErrStorage
	default:
		return nil
	}
}
