// Package color manages the fixed palette of player colors.
package color

import "sync"

// Palette is the ordered set of exclusive player colors.
var Palette = []string{
	"#4ade80", // green
	"#3b82f6", // blue
	"#ef4444", // red
	"#f59e0b", // orange
	"#8b5cf6", // purple
	"#06b6d4", // cyan
	"#84cc16", // lime
	"#f97316", // orange-red
}

// Fallback is handed out once every palette entry is in use. It is shared
// and never tracked as assigned.
const Fallback = "#d4af37"

// Pool issues and reclaims palette colors.
// All methods are safe for concurrent use.
type Pool struct {
	mu      sync.Mutex
	palette []string
	used    map[string]bool
}

// NewPool creates a Pool over the default Palette.
func NewPool() *Pool {
	return NewPoolWith(Palette)
}

// NewPoolWith creates a Pool over the given ordered palette.
//
// Precondition: palette entries should be distinct and must not equal Fallback.
func NewPoolWith(palette []string) *Pool {
	p := make([]string, len(palette))
	copy(p, palette)
	return &Pool{
		palette: p,
		used:    make(map[string]bool, len(p)),
	}
}

// Acquire returns the first free palette color and marks it used, or Fallback
// when the palette is exhausted.
//
// Postcondition: A returned palette color is held by no other caller until Release.
func (p *Pool) Acquire() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, c := range p.palette {
		if !p.used[c] {
			p.used[c] = true
			return c
		}
	}
	return Fallback
}

// Release returns c to the pool. Releasing Fallback, an unknown color, or a
// color that is not held is a no-op.
func (p *Pool) Release(c string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.used, c)
}

// InUse returns the number of palette colors currently held.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.used)
}

// Size returns the number of palette entries.
func (p *Pool) Size() int {
	return len(p.palette)
}
