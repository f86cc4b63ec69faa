//go:build !cgo

package embedding

import (
	"context"
	"errors"
)

const defaultFastEmbedModel = "BAAI/bge-small-en-v1.5"

// ErrFastEmbedNotAvailable is returned when FastEmbed is not compiled in
// (the ONNX runtime requires CGO).
var ErrFastEmbedNotAvailable = errors.New("fastembed: not available (binary built without CGO support)")

// FastEmbedEngine is a stub for non-CGO builds.
type FastEmbedEngine struct{}

// NewFastEmbedEngine always fails without CGO.
func NewFastEmbedEngine(_ string) (*FastEmbedEngine, error) {
	return nil, ErrFastEmbedNotAvailable
}

// Embed always fails without CGO.
func (e *FastEmbedEngine) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, ErrFastEmbedNotAvailable
}

// Model returns the default model name.
func (e *FastEmbedEngine) Model() string { return defaultFastEmbedModel }

// Dimensions returns 0 without CGO.
func (e *FastEmbedEngine) Dimensions() int { return 0 }

// Close is a no-op.
func (e *FastEmbedEngine) Close() error { return nil }

func fastEmbedDimensions(model string) *int {
	dims, ok := map[string]int{
		"BAAI/bge-small-en-v1.5":                 384,
		"BAAI/bge-small-en":                      384,
		"BAAI/bge-base-en-v1.5":                  768,
		"BAAI/bge-base-en":                       768,
		"sentence-transformers/all-MiniLM-L6-v2": 384,
	}[model]
	if !ok {
		return nil
	}
	return &dims
}
