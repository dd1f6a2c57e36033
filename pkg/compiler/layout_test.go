package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPositionOf_Deterministic(t *testing.T) {
	for i := 0; i < 20; i++ {
		assert.Equal(t, PositionOf(i, 20), PositionOf(i, 20))
	}
}

func TestPositionOf_DistinctPerIndex(t *testing.T) {
	seen := map[[2]int]bool{}

	for i := 0; i < 30; i++ {
		pos := PositionOf(i, 30)
		assert.False(t, seen[pos], "index %d reuses position %v", i, pos)
		seen[pos] = true
	}
}

func TestPositionOf_WrapsToNextRow(t *testing.T) {
	last := PositionOf(layoutPerRow-1, layoutPerRow+1)
	wrapped := PositionOf(layoutPerRow, layoutPerRow+1)

	assert.Equal(t, layoutOriginX, wrapped[0])
	assert.Greater(t, wrapped[1], last[1])
}
