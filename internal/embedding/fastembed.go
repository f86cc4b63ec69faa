//go:build cgo

package embedding

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	fastembed "github.com/anush008/fastembed-go"

	"github.com/fyrsmithlabs/ingatd/internal/domain"
)

const defaultFastEmbedModel = "BAAI/bge-small-en-v1.5"

// modelMapping maps friendly model names to fastembed model constants.
var modelMapping = map[string]fastembed.EmbeddingModel{
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-small-en":                      fastembed.BGESmallEN,
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"BAAI/bge-base-en":                       fastembed.BGEBaseEN,
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
}

// modelDims maps fastembed models to their embedding dimensions.
var modelDims = map[fastembed.EmbeddingModel]int{
	fastembed.BGESmallENV15: 384,
	fastembed.BGESmallEN:    384,
	fastembed.BGEBaseENV15:  768,
	fastembed.BGEBaseEN:     768,
	fastembed.AllMiniLML6V2: 384,
}

// FastEmbedEngine produces semantic embeddings with local ONNX models.
type FastEmbedEngine struct {
	mu         sync.Mutex
	flag       *fastembed.FlagEmbedding
	model      string
	dimensions int
}

// NewFastEmbedEngine initializes the ONNX model, downloading it into the
// cache directory on first use.
func NewFastEmbedEngine(model string) (*FastEmbedEngine, error) {
	if model == "" {
		model = defaultFastEmbedModel
	}

	mapped, ok := modelMapping[model]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported fastembed model %q", domain.ErrEmbedding, model)
	}

	cacheDir := fastEmbedCacheDir()
	showProgress := false
	flag, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                mapped,
		CacheDir:             cacheDir,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize fastembed model %q: %v", domain.ErrEmbedding, model, err)
	}

	return &FastEmbedEngine{
		flag:       flag,
		model:      model,
		dimensions: modelDims[mapped],
	}, nil
}

// Embed computes a semantic embedding for text.
func (e *FastEmbedEngine) Embed(_ context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text payload cannot be empty", domain.ErrValidation)
	}

	// The underlying ONNX session is not safe for concurrent use.
	e.mu.Lock()
	defer e.mu.Unlock()

	vectors, err := e.flag.Embed([]string{text}, 1)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbedding, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: expected 1 vector, got %d", domain.ErrEmbedding, len(vectors))
	}

	return vectors[0], nil
}

// Model returns the configured model name.
func (e *FastEmbedEngine) Model() string { return e.model }

// Dimensions returns the model's embedding dimension.
func (e *FastEmbedEngine) Dimensions() int { return e.dimensions }

// Close releases the ONNX session.
func (e *FastEmbedEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.flag != nil {
		e.flag.Destroy()
		e.flag = nil
	}
	return nil
}

func fastEmbedDimensions(model string) *int {
	mapped, ok := modelMapping[model]
	if !ok {
		return nil
	}
	dims := modelDims[mapped]
	return &dims
}

func fastEmbedCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "local_cache")
	}
	return filepath.Join(home, ".cache", "ingat", "models")
}
