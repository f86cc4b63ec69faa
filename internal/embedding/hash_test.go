package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ingatd/internal/domain"
)

func TestHashEngineDeterministic(t *testing.T) {
	engine, err := NewHashEngine("", 0)
	require.NoError(t, err)
	assert.Equal(t, "ingat/simple-hash", engine.Model())
	assert.Equal(t, 256, engine.Dimensions())

	ctx := context.Background()
	a, err := engine.Embed(ctx, "fix race condition in counter")
	require.NoError(t, err)
	b, err := engine.Embed(ctx, "fix race condition in counter")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 256)
}

func TestHashEngineNormalized(t *testing.T) {
	engine, err := NewHashEngine("test", 64)
	require.NoError(t, err)

	vec, err := engine.Embed(context.Background(), "alpha beta gamma delta")
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestHashEngineEmptyText(t *testing.T) {
	engine, err := NewHashEngine("", 0)
	require.NoError(t, err)

	_, err = engine.Embed(context.Background(), "   \n ")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestHashEngineDimensionClamping(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{name: "zero uses default", in: 0, want: 256},
		{name: "below minimum clamps up", in: 2, want: 8},
		{name: "above maximum clamps down", in: 10_000, want: 4096},
		{name: "in range unchanged", in: 128, want: 128},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := NewHashEngine("", tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, engine.Dimensions())
		})
	}

	_, err := NewHashEngine("", -1)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestNewSelectsBackend(t *testing.T) {
	engine, err := New(BackendHash, "", 0)
	require.NoError(t, err)
	assert.Equal(t, "ingat/simple-hash", engine.Model())

	// Empty backend defaults to hash.
	engine, err = New("", "custom-model", 32)
	require.NoError(t, err)
	assert.Equal(t, "custom-model", engine.Model())
	assert.Equal(t, 32, engine.Dimensions())

	_, err = New("quantum", "", 0)
	assert.ErrorIs(t, err, domain.ErrUnknownBackend)
}

func TestDescriptors(t *testing.T) {
	descs := Descriptors()
	require.Len(t, descs, 2)

	assert.Equal(t, BackendHash, descs[0].ID)
	assert.False(t, descs[0].FeatureGated)
	require.NotNil(t, descs[0].Dimensions)
	assert.Equal(t, 256, *descs[0].Dimensions)

	assert.Equal(t, BackendFastEmbed, descs[1].ID)
	assert.True(t, descs[1].FeatureGated)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"fix", "race", "mutex2"}, tokenize("Fix, race; MUTEX2!"))
	assert.Empty(t, tokenize("!!! ... ;;;"))
}
