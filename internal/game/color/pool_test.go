package color_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/runes/internal/game/color"
)

func TestPool_AcquireInPaletteOrder(t *testing.T) {
	p := color.NewPool()
	assert.Equal(t, "#4ade80", p.Acquire())
	assert.Equal(t, "#3b82f6", p.Acquire())
	assert.Equal(t, 2, p.InUse())
}

func TestPool_ExhaustedReturnsFallback(t *testing.T) {
	p := color.NewPool()
	for range color.Palette {
		assert.NotEqual(t, color.Fallback, p.Acquire())
	}
	assert.Equal(t, color.Fallback, p.Acquire())
	assert.Equal(t, color.Fallback, p.Acquire(), "fallback is shared")
	assert.Equal(t, len(color.Palette), p.InUse())
}

func TestPool_ReleaseReusesLowestFree(t *testing.T) {
	p := color.NewPool()
	first := p.Acquire()
	_ = p.Acquire()
	p.Release(first)
	assert.Equal(t, first, p.Acquire())
}

func TestPool_ReleaseFallbackIsNoop(t *testing.T) {
	p := color.NewPool()
	for range color.Palette {
		p.Acquire()
	}
	p.Release(color.Fallback)
	p.Release("#000000")
	assert.Equal(t, len(color.Palette), p.InUse())
}

func TestPool_Size(t *testing.T) {
	assert.Equal(t, 8, color.NewPool().Size())
	assert.Equal(t, 2, color.NewPoolWith([]string{"a", "b"}).Size())
}

func TestPropertyPool_HeldColorsAreDistinct(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := color.NewPool()
		var held []string
		ops := rapid.IntRange(1, 60).Draw(t, "ops")
		for i := 0; i < ops; i++ {
			if len(held) > 0 && rapid.Bool().Draw(t, "release") {
				idx := rapid.IntRange(0, len(held)-1).Draw(t, "idx")
				p.Release(held[idx])
				held = append(held[:idx], held[idx+1:]...)
				continue
			}
			if len(held) >= len(color.Palette) {
				continue
			}
			held = append(held, p.Acquire())
		}

		seen := make(map[string]bool, len(held))
		for _, c := range held {
			require.NotEqual(t, color.Fallback, c, "fallback must not be issued below capacity")
			require.False(t, seen[c], "color %s issued twice", c)
			seen[c] = true
		}
		assert.Equal(t, len(held), p.InUse())
	})
}
