package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/fyrsmithlabs/ingatd/internal/domain"
)

const (
	defaultHashModel      = "ingat/simple-hash"
	defaultHashDimensions = 256

	minHashDimensions = 8
	maxHashDimensions = 4096
)

// HashEngine is a deterministic bag-of-words embedder. Tokens are hashed
// into a fixed-size vector which is then L2-normalized. Not semantic, but
// fast, offline, and stable across runs — the always-available fallback.
type HashEngine struct {
	model      string
	dimensions int
}

// NewHashEngine creates a hash engine. Dimensions are clamped to 8..4096;
// zero selects the default.
func NewHashEngine(model string, dimensions int) (*HashEngine, error) {
	if model == "" {
		model = defaultHashModel
	}
	if dimensions == 0 {
		dimensions = defaultHashDimensions
	}
	if dimensions < 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive", domain.ErrValidation)
	}
	if dimensions < minHashDimensions {
		dimensions = minHashDimensions
	}
	if dimensions > maxHashDimensions {
		dimensions = maxHashDimensions
	}
	return &HashEngine{model: model, dimensions: dimensions}, nil
}

// Embed hashes each token into a bucket and L2-normalizes the counts so
// cosine scores stay in [0,1] for non-negative vectors.
func (e *HashEngine) Embed(_ context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text payload cannot be empty", domain.ErrValidation)
	}

	vector := make([]float32, e.dimensions)
	for _, token := range tokenize(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(token))
		vector[h.Sum64()%uint64(e.dimensions)]++
	}

	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vector {
			vector[i] *= inv
		}
	}

	return vector, nil
}

// Model returns the configured model identifier.
func (e *HashEngine) Model() string { return e.model }

// Dimensions returns the vector length.
func (e *HashEngine) Dimensions() int { return e.dimensions }

// Close is a no-op.
func (e *HashEngine) Close() error { return nil }

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
