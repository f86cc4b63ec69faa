package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ingatd/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "contexts.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testRecord(project, summary string, createdAt time.Time) domain.ContextRecord {
	return domain.ContextRecord{
		ID:        uuid.New(),
		Project:   project,
		IDE:       "vscode",
		Summary:   summary,
		Body:      "body of " + summary,
		Tags:      []string{"test"},
		Kind:      domain.ContextKind{Kind: domain.KindCodeSnippet},
		Embedding: domain.Embedding{Model: "test", Vector: []float32{1, 0, 0}},
		CreatedAt: createdAt,
	}
}

func TestPutGetRoundtrip(t *testing.T) {
	s := openTestStore(t)

	rec := testRecord("demo", "fix race", time.Now().UTC())
	require.NoError(t, s.Put(rec))

	got, err := s.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.Summary, got.Summary)
	assert.Equal(t, rec.Body, got.Body)
	assert.Equal(t, rec.Tags, got.Tags)
	assert.Equal(t, rec.Kind, got.Kind)
	assert.Equal(t, rec.Embedding.Vector, got.Embedding.Vector)
}

func TestGetNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get(uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecentNewestFirst(t *testing.T) {
	s := openTestStore(t)

	base := time.Now().UTC().Add(-time.Hour)
	oldest := testRecord("demo", "oldest", base)
	middle := testRecord("demo", "middle", base.Add(time.Minute))
	newest := testRecord("other", "newest", base.Add(2*time.Minute))

	// Insert out of order; the time index recovers creation order.
	for _, rec := range []domain.ContextRecord{middle, newest, oldest} {
		require.NoError(t, s.Put(rec))
	}

	summaries, err := s.Recent(10, "")
	require.NoError(t, err)
	require.Len(t, summaries, 3)
	assert.Equal(t, "newest", summaries[0].Summary)
	assert.Equal(t, "middle", summaries[1].Summary)
	assert.Equal(t, "oldest", summaries[2].Summary)

	// Limit truncates from the newest end.
	summaries, err = s.Recent(1, "")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "newest", summaries[0].Summary)
}

func TestRecentProjectFilter(t *testing.T) {
	s := openTestStore(t)

	base := time.Now().UTC()
	require.NoError(t, s.Put(testRecord("alpha", "a1", base)))
	require.NoError(t, s.Put(testRecord("beta", "b1", base.Add(time.Second))))
	require.NoError(t, s.Put(testRecord("alpha", "a2", base.Add(2*time.Second))))

	summaries, err := s.Recent(10, "alpha")
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "a2", summaries[0].Summary)
	assert.Equal(t, "a1", summaries[1].Summary)

	summaries, err = s.Recent(10, "missing")
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestScan(t *testing.T) {
	s := openTestStore(t)

	base := time.Now().UTC()
	require.NoError(t, s.Put(testRecord("alpha", "a1", base)))
	require.NoError(t, s.Put(testRecord("beta", "b1", base.Add(time.Second))))

	var all []string
	require.NoError(t, s.Scan("", func(rec domain.ContextRecord) error {
		all = append(all, rec.Summary)
		return nil
	}))
	assert.ElementsMatch(t, []string{"a1", "b1"}, all)

	var filtered []string
	require.NoError(t, s.Scan("beta", func(rec domain.ContextRecord) error {
		filtered = append(filtered, rec.Summary)
		return nil
	}))
	assert.Equal(t, []string{"b1"}, filtered)
}

func TestProjectsAndCount(t *testing.T) {
	s := openTestStore(t)

	base := time.Now().UTC()
	require.NoError(t, s.Put(testRecord("zeta", "z", base)))
	require.NoError(t, s.Put(testRecord("alpha", "a", base)))
	require.NoError(t, s.Put(testRecord("alpha", "a2", base)))

	projects, err := s.Projects()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, projects)

	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestExclusiveLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contexts.db")

	first, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	defer first.Close()

	// Second open of the same file must fail fast with LockHeld,
	// not block or corrupt.
	_, err = Open(path, zap.NewNop())
	require.ErrorIs(t, err, domain.ErrLockHeld)
	assert.Contains(t, err.Error(), "ingatd service")

	// Releasing the lock lets the next owner in.
	require.NoError(t, first.Close())
	second, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, second.Close())
}

func TestPing(t *testing.T) {
	s := openTestStore(t)
	assert.NoError(t, s.Ping())
}
