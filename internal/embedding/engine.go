// Package embedding provides the pluggable text-to-vector capability.
//
// Two engines are available: a deterministic hash embedder that is always
// built in, and a FastEmbed ONNX engine gated on cgo. Exactly one engine is
// active per process; it is injected into the local backend at construction
// and swapped only through the set-backend operation.
package embedding

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/ingatd/internal/domain"
)

// Engine converts text into a fixed-length vector.
type Engine interface {
	// Embed computes the vector for text. Empty text is a validation error.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Model returns the model identifier stamped onto embeddings.
	Model() string

	// Dimensions returns the vector length this engine produces.
	Dimensions() int

	// Close releases engine resources.
	Close() error
}

// Backend ids.
const (
	BackendHash      = "hash"
	BackendFastEmbed = "fastembed"
)

// Descriptor describes one selectable embedding backend.
type Descriptor struct {
	ID           string `json:"id"`
	Label        string `json:"label"`
	Description  string `json:"description"`
	Model        string `json:"model"`
	Dimensions   *int   `json:"dimensions"`
	FeatureGated bool   `json:"feature_gated"`
}

// Descriptors lists the backends selectable in this build.
func Descriptors() []Descriptor {
	hashDims := defaultHashDimensions
	return []Descriptor{
		{
			ID:          BackendHash,
			Label:       "Deterministic Hash (offline)",
			Description: "Small, deterministic vectors suitable for quick local use without model downloads.",
			Model:       defaultHashModel,
			Dimensions:  &hashDims,
		},
		{
			ID:           BackendFastEmbed,
			Label:        "FastEmbed (semantic)",
			Description:  "High-quality semantic embeddings via fastembed/ONNX runtime.",
			Model:        defaultFastEmbedModel,
			Dimensions:   fastEmbedDimensions(defaultFastEmbedModel),
			FeatureGated: true,
		},
	}
}

// New constructs the engine for a backend id. Model and dimensions are
// optional overrides; zero values select the backend defaults.
func New(backend, model string, dimensions int) (Engine, error) {
	switch backend {
	case BackendHash, "":
		return NewHashEngine(model, dimensions)
	case BackendFastEmbed:
		return NewFastEmbedEngine(model)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownBackend, backend)
	}
}
