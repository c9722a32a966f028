package npc

import (
	"time"

	"github.com/cory-johannsen/runes/internal/game/world"
)

// NPC is the live runtime state of one non-player character.
type NPC struct {
	// ID is the stable identifier from the seed document.
	ID string
	// Name is shown in dialogue and defeat events.
	Name string
	// Color is the NPC's render color.
	Color string
	// Width and Height are the render dimensions.
	Width  float64
	Height float64
	// Behavior is an opaque behavior tag such as "wander".
	Behavior string
	// WanderRadius is reserved for motion logic.
	WanderRadius float64
	// Interactable is carried through from the seed document.
	Interactable bool
	// Dialogue is the ordered list of lines returned on interaction.
	Dialogue []string
	// IsCustom and CustomImage describe an optional custom sprite.
	IsCustom    bool
	CustomImage *string

	// X and Y are the current position.
	X float64
	Y float64
	// Health is the current health, 0 <= Health <= MaxHealth.
	Health float64
	// MaxHealth is the seeded starting health.
	MaxHealth float64

	// Motion state. Maintained but not advanced by any tick.
	TargetX      float64
	TargetY      float64
	IsMoving     bool
	LastMovement time.Time
}

// New creates a live NPC from a catalog definition.
//
// Precondition: def must come from a world.Catalog (all defaults applied).
// Postcondition: Health == MaxHealth == max(0, def.Health); TargetX/TargetY
// equal the spawn position; IsMoving is false.
func New(def world.NPCDefinition, now time.Time) *NPC {
	health := def.Health
	if health < 0 {
		health = 0
	}
	dialogue := make([]string, len(def.Dialogue))
	copy(dialogue, def.Dialogue)

	return &NPC{
		ID:           def.ID,
		Name:         def.Name,
		Color:        def.Color,
		Width:        def.Width,
		Height:       def.Height,
		Behavior:     def.Behavior,
		WanderRadius: def.WanderRadius,
		Interactable: def.Interactable,
		Dialogue:     dialogue,
		IsCustom:     def.IsCustom,
		CustomImage:  def.CustomImage,
		X:            def.X,
		Y:            def.Y,
		Health:       health,
		MaxHealth:    health,
		TargetX:      def.X,
		TargetY:      def.Y,
		LastMovement: now,
	}
}

// IsDefeated reports whether the NPC has no health left.
func (n *NPC) IsDefeated() bool {
	return n.Health <= 0
}

// HealthDescription returns a coarse health label for logs.
//
// Postcondition: Returns a non-empty string.
func (n *NPC) HealthDescription() string {
	if n.Health <= 0 {
		return "defeated"
	}
	if n.MaxHealth <= 0 {
		return "unharmed"
	}
	pct := n.Health / n.MaxHealth
	switch {
	case pct >= 1.0:
		return "unharmed"
	case pct >= 0.60:
		return "lightly wounded"
	case pct >= 0.20:
		return "heavily wounded"
	default:
		return "critically wounded"
	}
}

func (n *NPC) clone() NPC {
	c := *n
	c.Dialogue = make([]string, len(n.Dialogue))
	copy(c.Dialogue, n.Dialogue)
	return c
}
