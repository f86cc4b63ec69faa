package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ingatd/internal/domain"
)

func TestRemoteIngest(t *testing.T) {
	id := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/contexts", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req IngestRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "demo", req.Project)

		_ = json.NewEncoder(w).Encode(domain.ContextSummary{
			ID:        id,
			Project:   req.Project,
			Summary:   req.Summary,
			Kind:      req.Kind,
			CreatedAt: time.Now().UTC(),
		})
	}))
	defer srv.Close()

	remote := NewRemote(srv.URL, nil)
	summary, err := remote.Ingest(context.Background(), IngestRequest{
		Project: "demo",
		IDE:     "vscode",
		Summary: "hello",
		Body:    "world",
		Kind:    domain.ContextKind{Kind: domain.KindDiscussion},
	})
	require.NoError(t, err)
	assert.Equal(t, id, summary.ID)
	assert.Equal(t, "demo", summary.Project)
}

func TestRemoteRecentQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/contexts", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Equal(t, "demo", r.URL.Query().Get("project"))
		_ = json.NewEncoder(w).Encode(SummaryList{Items: []domain.ContextSummary{{Project: "demo"}}})
	}))
	defer srv.Close()

	remote := NewRemote(srv.URL, nil)
	list, err := remote.Recent(context.Background(), 5, "demo")
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
}

func TestRemoteErrorMapping(t *testing.T) {
	tests := []struct {
		code     string
		sentinel error
	}{
		{CodeValidation, domain.ErrValidation},
		{CodeEmbedding, domain.ErrEmbedding},
		{CodeNotFound, domain.ErrNotFound},
		{CodeLockHeld, domain.ErrLockHeld},
		{CodeUnknownBackend, domain.ErrUnknownBackend},
		{CodeStorage, domain.ErrStorage},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(errorPayload{Error: "boom", Code: tt.code})
			}))
			defer srv.Close()

			remote := NewRemote(srv.URL, nil)
			_, err := remote.Search(context.Background(), SearchRequest{Prompt: "x"})
			require.ErrorIs(t, err, tt.sentinel)
			assert.Contains(t, err.Error(), "boom")
		})
	}
}

func TestRemoteConnectionFailure(t *testing.T) {
	// Grab a port that refuses connections.
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	remote := NewRemote(url, nil)

	_, err := remote.Search(context.Background(), SearchRequest{Prompt: "x"})
	require.ErrorIs(t, err, domain.ErrServiceUnavailable)

	_, err = remote.Health(context.Background())
	require.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestRemoteRetriesIdempotentOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			// Drop the connection mid-flight to simulate a transient failure.
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			_ = conn.Close()
			return
		}
		_ = json.NewEncoder(w).Encode(SearchResponse{Query: "x"})
	}))
	defer srv.Close()

	remote := NewRemote(srv.URL, nil)
	resp, err := remote.Search(context.Background(), SearchRequest{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "x", resp.Query)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRemoteDoesNotRetryIngest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		hj, ok := w.(http.Hijacker)
		require.True(t, ok)
		conn, _, err := hj.Hijack()
		require.NoError(t, err)
		_ = conn.Close()
	}))
	defer srv.Close()

	remote := NewRemote(srv.URL, nil)
	_, err := remote.Ingest(context.Background(), IngestRequest{Project: "demo"})
	require.ErrorIs(t, err, domain.ErrServiceUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRemoteProjects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/projects", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]string{"alpha", "beta"})
	}))
	defer srv.Close()

	remote := NewRemote(srv.URL, nil)
	projects, err := remote.Projects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, projects)
}

func TestRemoteSetBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/api/backends", r.URL.Path)

		var req SetBackendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hash", req.BackendID)

		_ = json.NewEncoder(w).Encode(BackendList{Active: "hash"})
	}))
	defer srv.Close()

	remote := NewRemote(srv.URL, nil)
	list, err := remote.SetBackend(context.Background(), SetBackendRequest{BackendID: "hash"})
	require.NoError(t, err)
	assert.Equal(t, "hash", list.Active)
}
