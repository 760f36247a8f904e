package isin

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// constSource always yields the same value, so every candidate is identical.
type constSource uint64

func (c constSource) Uint64() uint64 { return uint64(c) }

func TestCheckDigitKnownISINs(t *testing.T) {
	assert.Equal(t, 5, CheckDigit("US037833100"))
	assert.Equal(t, 6, CheckDigit("GB000263494"))
	assert.Equal(t, 5, CheckDigit("USMOCK12345"))
}

func TestGenerateShape(t *testing.T) {
	g := NewGenerator(rand.NewPCG(1, 2), 0)
	for range 200 {
		id, err := g.Generate(nil)
		require.NoError(t, err)
		assert.Len(t, id, Length)
		assert.Equal(t, "USMOCK", id[:6])
		assert.True(t, Valid(id), id)
	}
}

func TestGenerateNeverRepeatsWithCollisionCheck(t *testing.T) {
	g := NewGenerator(rand.NewPCG(7, 7), 0)
	seen := make(map[string]bool)
	for range 2000 {
		id, err := g.Generate(func(s string) bool { return seen[s] })
		require.NoError(t, err)
		require.False(t, seen[id], "duplicate %s", id)
		seen[id] = true
	}
}

func TestGenerateRetriesOnCollision(t *testing.T) {
	g := NewGenerator(rand.NewPCG(3, 4), 0)
	first, err := g.Generate(nil)
	require.NoError(t, err)

	collisions := 0
	g.OnCollision = func(string) { collisions++ }
	calls := 0
	id, err := g.Generate(func(s string) bool {
		calls++
		return calls <= 2
	})
	require.NoError(t, err)
	assert.Equal(t, 2, collisions)
	assert.NotEqual(t, first, id)
}

func TestGenerateExhausts(t *testing.T) {
	g := NewGenerator(constSource(42), 5)
	taken, err := g.Generate(nil)
	require.NoError(t, err)

	collisions := 0
	g.OnCollision = func(string) { collisions++ }
	_, err = g.Generate(func(s string) bool { return s == taken })
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 5, collisions)
	assert.Equal(t, 5, g.MaxAttempts())
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("USMOCK123455"))
	assert.False(t, Valid("USMOCK123450"))
	assert.False(t, Valid("GBMOCK123455"))
	assert.False(t, Valid("USMOCK12345"))
	assert.False(t, Valid("USMOCK1234A5"))
}
