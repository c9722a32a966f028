package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// MaxNameLength is the longest accepted display name, in characters.
const MaxNameLength = 20

var (
	// ErrInvalidName is returned by ValidateName for a rejected name.
	ErrInvalidName = errors.New("invalid player name")
	// ErrNameTaken is returned by Table.Add when the name is already joined.
	ErrNameTaken = errors.New("player name already taken")
	// ErrFull is returned by Table.Add when the table is at capacity.
	ErrFull = errors.New("session table full")
	// ErrDuplicateID is returned by Table.Add when the id is already registered.
	ErrDuplicateID = errors.New("player id already registered")
)

// ValidateName trims raw and checks it against the display-name rules.
//
// Postcondition: Returns the trimmed name when it is 1 to MaxNameLength
// characters drawn only from letters, digits, space, '_', '-' and '.';
// otherwise returns an error wrapping ErrInvalidName.
func ValidateName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalidName, MaxNameLength)
	}
	for _, r := range name {
		if !nameRune(r) {
			return "", fmt.Errorf("%w: character %q not allowed", ErrInvalidName, r)
		}
	}
	return name, nil
}

func nameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == ' ', r == '_', r == '-', r == '.':
		return true
	default:
		return false
	}
}

// Player is one joined participant.
type Player struct {
	// ID is unique among players for the life of the process.
	ID string
	// Name is the validated display name.
	Name string
	// X and Y are the last reported position.
	X float64
	Y float64
	// Color is a palette color or the shared fallback.
	Color string
	// ConnectedAt is the time the join completed.
	ConnectedAt time.Time
	// Outbox delivers frames to this player's connection.
	Outbox *Outbox
}

// NewPlayer creates a Player record.
//
// Precondition: id, name and color must be non-empty; name must have passed
// ValidateName; outbox must be non-nil.
// Postcondition: Returns a Player positioned at (x, y).
func NewPlayer(id, name, color string, x, y float64, connectedAt time.Time, outbox *Outbox) *Player {
	return &Player{
		ID:          id,
		Name:        name,
		X:           x,
		Y:           y,
		Color:       color,
		ConnectedAt: connectedAt,
		Outbox:      outbox,
	}
}

// Table tracks all joined players in join order.
// All methods are safe for concurrent use.
type Table struct {
	mu       sync.RWMutex
	capacity int
	players  map[string]*Player // id → player
	names    map[string]string  // name → id
	order    []string
}

// NewTable creates an empty Table holding at most capacity players.
//
// Precondition: capacity must be >= 1.
func NewTable(capacity int) *Table {
	return &Table{
		capacity: capacity,
		players:  make(map[string]*Player),
		names:    make(map[string]string),
	}
}

// Capacity returns the configured maximum number of players.
func (t *Table) Capacity() int {
	return t.capacity
}

// Add registers p. Name uniqueness is checked before capacity.
//
// Precondition: p must be non-nil with a non-empty ID and Name.
// Postcondition: On success Count() grows by one; on error the table is unchanged
// and the error wraps ErrDuplicateID, ErrNameTaken or ErrFull.
func (t *Table) Add(p *Player) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.players[p.ID]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateID, p.ID)
	}
	if _, taken := t.names[p.Name]; taken {
		return fmt.Errorf("%w: %q", ErrNameTaken, p.Name)
	}
	if len(t.players) >= t.capacity {
		return fmt.Errorf("%w: %d players", ErrFull, t.capacity)
	}

	t.players[p.ID] = p
	t.names[p.Name] = p.ID
	t.order = append(t.order, p.ID)
	return nil
}

// Remove deletes the player with the given id.
//
// Postcondition: Returns (player, true) if it was present; (nil, false)
// otherwise, in which case nothing changes.
func (t *Table) Remove(id string) (*Player, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.players[id]
	if !ok {
		return nil, false
	}
	delete(t.players, id)
	delete(t.names, p.Name)
	for i, oid := range t.order {
		if oid == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return p, true
}

// Get returns the player with the given id.
//
// Postcondition: Returns (player, true) if found, or (nil, false) otherwise.
func (t *Table) Get(id string) (*Player, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.players[id]
	return p, ok
}

// NameTaken reports whether a joined player already uses name.
func (t *Table) NameTaken(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.names[name]
	return ok
}

// Full reports whether the table is at capacity.
func (t *Table) Full() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.players) >= t.capacity
}

// Move sets the position of the player with the given id.
//
// Postcondition: Returns false if no such player exists.
func (t *Table) Move(id string, x, y float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.players[id]
	if !ok {
		return false
	}
	p.X, p.Y = x, y
	return true
}

// Count returns the number of joined players.
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.players)
}

// Snapshot returns copies of every joined player in join order. The copies
// share Outbox pointers with the live records.
//
// Postcondition: Returns a non-nil slice (may be empty); later table changes
// do not affect it.
func (t *Table) Snapshot() []Player {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Player, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *t.players[id])
	}
	return out
}
