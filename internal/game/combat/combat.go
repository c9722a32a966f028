// Package combat holds the proximity and damage rules shared by NPC
// interaction and NPC attacks.
package combat

import "math"

// Distance returns the Euclidean distance between (ax, ay) and (bx, by).
func Distance(ax, ay, bx, by float64) float64 {
	return math.Hypot(ax-bx, ay-by)
}

// InRange reports whether (ax, ay) lies within maxRange of (bx, by).
// A point exactly at maxRange is in range.
//
// Precondition: maxRange must be >= 0.
func InRange(ax, ay, bx, by, maxRange float64) bool {
	return Distance(ax, ay, bx, by) <= maxRange
}

// Outcome is the result of applying one strike to a target.
type Outcome struct {
	// Health is the target's health after the strike.
	Health float64
	// MaxHealth is the target's unchanged maximum health.
	MaxHealth float64
	// Defeated is true when Health is zero after the strike, including a
	// strike against a target that was already at zero.
	Defeated bool
	// FirstDefeat is true only when this strike took Health from above zero to zero.
	FirstDefeat bool
}

// Strike applies damage to a target with the given health, flooring at zero.
//
// Precondition: damage must be > 0; 0 <= health <= maxHealth.
// Postcondition: Outcome.Health == max(0, health-damage).
func Strike(health, maxHealth, damage float64) Outcome {
	next := health - damage
	if next < 0 {
		next = 0
	}
	return Outcome{
		Health:      next,
		MaxHealth:   maxHealth,
		Defeated:    next == 0,
		FirstDefeat: next == 0 && health > 0,
	}
}
