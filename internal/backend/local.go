package backend

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ingatd/internal/config"
	"github.com/fyrsmithlabs/ingatd/internal/domain"
	"github.com/fyrsmithlabs/ingatd/internal/embedding"
	"github.com/fyrsmithlabs/ingatd/internal/search"
	"github.com/fyrsmithlabs/ingatd/internal/store"
)

// Local composes the record store, the active embedding engine, and the
// search engine behind the Backend interface. It is used by the owning
// service and by single-client processes that could not reach a service.
type Local struct {
	store    *store.Store
	settings *config.Settings
	searcher *search.Engine
	logger   *zap.Logger

	// engine is swapped only by SetBackend; the lock makes the swap a
	// single well-defined effect boundary rather than ambient state.
	mu     sync.RWMutex
	engine embedding.Engine
}

// NewLocal opens the backend over an already-opened store. The initial
// engine comes from the persisted settings.
func NewLocal(st *store.Store, settings *config.Settings, logger *zap.Logger) (*Local, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	sel := settings.Embedding()
	engine, err := embedding.New(sel.Backend, sel.Model, sel.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding backend %q: %w", sel.Backend, err)
	}

	logger.Info("local backend ready",
		zap.String("embedding_backend", sel.Backend),
		zap.String("model", engine.Model()),
		zap.Int("dimensions", engine.Dimensions()),
	)

	return &Local{
		store:    st,
		settings: settings,
		searcher: search.NewEngine(st),
		logger:   logger,
		engine:   engine,
	}, nil
}

// Ingest validates, embeds synchronously, and durably persists a record.
// A successful return guarantees the record is searchable.
func (l *Local) Ingest(ctx context.Context, req IngestRequest) (*domain.ContextSummary, error) {
	if err := validateIngest(req); err != nil {
		return nil, err
	}

	engine := l.activeEngine()
	text := strings.TrimSpace(req.Summary) + "\n" + strings.TrimSpace(req.Body)
	vector, err := engine.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	rec := domain.NewContextRecord(
		req.Project, req.IDE, req.FilePath, req.Language,
		req.Summary, req.Body, req.Tags, req.Kind,
		domain.Embedding{Model: engine.Model(), Vector: vector},
	)

	if err := l.store.Put(rec); err != nil {
		return nil, err
	}

	l.logger.Debug("context ingested",
		zap.String("id", rec.ID.String()),
		zap.String("project", rec.Project),
	)

	summary := rec.AsSummary()
	return &summary, nil
}

// Search embeds the prompt with the active engine and ranks the corpus.
func (l *Local) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, fmt.Errorf("%w: prompt cannot be empty", domain.ErrValidation)
	}

	engine := l.activeEngine()
	vector, err := engine.Embed(ctx, prompt)
	if err != nil {
		return nil, err
	}

	results, err := l.searcher.Search(
		domain.Embedding{Model: engine.Model(), Vector: vector},
		req.Filters,
		req.Limit,
	)
	if err != nil {
		return nil, err
	}

	return &SearchResponse{Query: prompt, Results: results}, nil
}

// Recent lists the newest summaries, optionally filtered by project.
func (l *Local) Recent(_ context.Context, limit int, project string) (*SummaryList, error) {
	items, err := l.store.Recent(search.ClampLimit(limit), domain.SanitizeProject(project))
	if err != nil {
		return nil, err
	}
	return &SummaryList{Items: items}, nil
}

// Projects lists the distinct project names.
func (l *Local) Projects(_ context.Context) ([]string, error) {
	return l.store.Projects()
}

// Health verifies the store is readable.
func (l *Local) Health(_ context.Context) (*HealthStatus, error) {
	if err := l.store.Ping(); err != nil {
		return nil, err
	}
	return &HealthStatus{
		Status:  "healthy",
		Service: ServiceName,
		Model:   l.activeEngine().Model(),
	}, nil
}

// Backends lists the selectable embedding backends and the active one.
func (l *Local) Backends(_ context.Context) (*BackendList, error) {
	return l.backendList(), nil
}

// SetBackend switches the active embedding engine and persists the
// selection. Existing records keep their original embeddings; the search
// engine tolerates the resulting dimensionality skew by skipping mismatches.
func (l *Local) SetBackend(_ context.Context, req SetBackendRequest) (*BackendList, error) {
	model := strings.TrimSpace(req.ModelOverride)

	next, err := embedding.New(req.BackendID, model, 0)
	if err != nil {
		return nil, err
	}

	sel := config.EmbeddingSelection{
		Backend:    req.BackendID,
		Model:      next.Model(),
		Dimensions: next.Dimensions(),
	}
	if err := l.settings.SetEmbedding(sel); err != nil {
		_ = next.Close()
		return nil, fmt.Errorf("%w: failed to persist backend selection: %v", domain.ErrStorage, err)
	}

	l.mu.Lock()
	prev := l.engine
	l.engine = next
	l.mu.Unlock()
	_ = prev.Close()

	l.logger.Info("embedding backend switched",
		zap.String("backend", sel.Backend),
		zap.String("model", sel.Model),
	)

	return l.backendList(), nil
}

// Count returns the number of stored records (used by the stats endpoint).
func (l *Local) Count() (int, error) {
	return l.store.Count()
}

// StorePath returns the database file path (used by the stats endpoint).
func (l *Local) StorePath() string {
	return l.store.Path()
}

// Close releases the engine and the store, freeing the write lock.
func (l *Local) Close() error {
	l.mu.Lock()
	engine := l.engine
	l.mu.Unlock()
	if engine != nil {
		_ = engine.Close()
	}
	return l.store.Close()
}

func (l *Local) activeEngine() embedding.Engine {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.engine
}

func (l *Local) backendList() *BackendList {
	sel := l.settings.Embedding()
	options := embedding.Descriptors()

	engine := l.activeEngine()
	for i := range options {
		if options[i].ID == sel.Backend {
			options[i].Model = engine.Model()
			dims := engine.Dimensions()
			if dims > 0 {
				options[i].Dimensions = &dims
			}
		}
	}

	return &BackendList{Active: sel.Backend, Options: options}
}

func validateIngest(req IngestRequest) error {
	if strings.TrimSpace(req.Project) == "" {
		return fmt.Errorf("%w: project is required", domain.ErrValidation)
	}
	if strings.TrimSpace(req.IDE) == "" {
		return fmt.Errorf("%w: ide is required", domain.ErrValidation)
	}
	summary := strings.TrimSpace(req.Summary)
	if summary == "" {
		return fmt.Errorf("%w: summary is required", domain.ErrValidation)
	}
	if len([]rune(summary)) > domain.MaxSummaryChars {
		return fmt.Errorf("%w: summary cannot exceed %d characters", domain.ErrValidation, domain.MaxSummaryChars)
	}
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return fmt.Errorf("%w: body is required", domain.ErrValidation)
	}
	if len([]rune(body)) > domain.MaxBodyChars {
		return fmt.Errorf("%w: body cannot exceed %d characters", domain.ErrValidation, domain.MaxBodyChars)
	}
	if len(req.Tags) > domain.MaxTags {
		return fmt.Errorf("%w: tags cannot exceed %d entries", domain.ErrValidation, domain.MaxTags)
	}
	return req.Kind.Validate()
}
