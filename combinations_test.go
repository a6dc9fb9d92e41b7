package tuner

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateGrid(t *testing.T) {
	space := SearchSpace{
		NComp: []int{1, 2},
		KeepX: map[string][]int{"b1": {5, 10}, "b2": {3, 6}},
	}

	combos, err := Generate(space, SearchGrid, 0, nil)
	require.NoError(t, err)
	require.Len(t, combos, 8)

	seen := make(map[[3]int]bool)
	for _, c := range combos {
		p := c.Params()
		assert.Contains(t, p, "ncomp")
		assert.Contains(t, p, "keepX_b1")
		assert.Contains(t, p, "keepX_b2")

		seen[[3]int{p["ncomp"], p["keepX_b1"], p["keepX_b2"]}] = true
	}

	assert.Len(t, seen, 8)

	// ncomp varies fastest.
	assert.Equal(t, 1, combos[0].NComp)
	assert.Equal(t, 2, combos[1].NComp)
	assert.Equal(t, combos[0].KeepX, combos[1].KeepX)
}

func TestGenerateRandomIsCappedAtGridSize(t *testing.T) {
	space := SearchSpace{
		NComp: []int{1, 2},
		KeepX: map[string][]int{"b1": {5, 10}},
	}

	combos, err := Generate(space, SearchRandom, 10, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Len(t, combos, 4)

	for _, c := range combos {
		assert.Contains(t, []int{1, 2}, c.NComp)
		assert.Contains(t, []int{5, 10}, c.KeepMap()["b1"])
	}
}

func TestGenerateRandomDeterministic(t *testing.T) {
	space := classSpace()

	first, err := Generate(space, SearchRandom, 5, rand.New(rand.NewSource(8)))
	require.NoError(t, err)

	second, err := Generate(space, SearchRandom, 5, rand.New(rand.NewSource(8)))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestGenerateRejectsInvalid(t *testing.T) {
	_, err := Generate(classSpace(), SearchRandom, 0, rand.New(rand.NewSource(1)))
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = Generate(classSpace(), SearchType(99), 1, nil)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, _, huge := manyBlocks()

	_, err = Generate(huge, SearchGrid, 0, nil)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	combos, err := Generate(huge, SearchRandom, 2, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Len(t, combos, 2)
}

func TestSearchSpaceBlockOrder(t *testing.T) {
	space := SearchSpace{KeepX: map[string][]int{"z": {1}, "a": {1}}}
	assert.Equal(t, []string{"a", "z"}, space.Blocks())

	space.BlockOrder = []string{"z", "a"}
	assert.Equal(t, []string{"z", "a"}, space.Blocks())
}

func TestParseSearchType(t *testing.T) {
	s, err := ParseSearchType(" Random ")
	require.NoError(t, err)
	assert.Equal(t, SearchRandom, s)

	_, err = ParseSearchType("exhaustive")
	assert.True(t, errors.Is(err, ErrInvalidInput))
}
