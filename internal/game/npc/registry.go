// Package npc holds the mutable runtime state of every NPC, seeded once from
// the world catalog.
package npc

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cory-johannsen/runes/internal/game/combat"
	"github.com/cory-johannsen/runes/internal/game/world"
)

// ErrNotFound is returned when an NPC id is not registered.
var ErrNotFound = errors.New("npc not found")

// Registry tracks all NPCs by ID in seed order. NPCs are never added or
// removed after construction.
// All methods are safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	npcs  map[string]*NPC
	order []string
}

// NewRegistry seeds a Registry from cat.
//
// Precondition: cat may be nil, which yields an empty registry.
// Postcondition: Len() == cat.NPCCount(); All() follows catalog order.
func NewRegistry(cat *world.Catalog, now time.Time) *Registry {
	r := &Registry{npcs: make(map[string]*NPC)}
	if cat == nil {
		return r
	}
	for _, def := range cat.NPCs {
		if _, dup := r.npcs[def.ID]; !dup {
			r.order = append(r.order, def.ID)
		}
		r.npcs[def.ID] = New(def, now)
	}
	return r
}

// Get returns a copy of the NPC with the given ID.
//
// Postcondition: Returns (npc, true) if found, or (zero, false) otherwise.
func (r *Registry) Get(id string) (NPC, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.npcs[id]
	if !ok {
		return NPC{}, false
	}
	return n.clone(), true
}

// All returns a snapshot of every NPC in seed order.
//
// Postcondition: Returns a non-nil slice (may be empty).
func (r *Registry) All() []NPC {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]NPC, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.npcs[id].clone())
	}
	return out
}

// Len returns the number of registered NPCs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Strike applies damage to the NPC with the given ID.
//
// Precondition: damage must be > 0.
// Postcondition: On success the NPC's Health equals the returned
// Outcome.Health; returns an error wrapping ErrNotFound if id is unknown.
func (r *Registry) Strike(id string, damage float64) (combat.Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.npcs[id]
	if !ok {
		return combat.Outcome{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	out := combat.Strike(n.Health, n.MaxHealth, damage)
	n.Health = out.Health
	return out, nil
}
