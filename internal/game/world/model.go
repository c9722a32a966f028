// Package world loads the immutable world seed document and the initial NPC
// roster it describes.
package world

import "encoding/json"

// Defaults applied to NPC seed entries that omit a field.
const (
	DefaultNPCName         = "Unknown NPC"
	DefaultNPCX            = 100.0
	DefaultNPCY            = 100.0
	DefaultNPCHealth       = 100.0
	DefaultNPCBehavior     = "wander"
	DefaultNPCWanderRadius = 50.0
	DefaultNPCColor        = "#8b4513"
	DefaultNPCWidth        = 32.0
	DefaultNPCHeight       = 32.0
)

// DefaultDialogue is used for NPC entries without a dialogue list.
var DefaultDialogue = []string{"Hello!"}

// NPCDefinition is one fully-defaulted NPC entry from the seed document.
type NPCDefinition struct {
	ID           string
	Name         string
	X            float64
	Y            float64
	Health       float64
	Behavior     string
	WanderRadius float64
	Interactable bool
	Color        string
	Dialogue     []string
	Width        float64
	Height       float64
	IsCustom     bool
	CustomImage  *string
}

// Catalog is the loaded world seed. It is never mutated after load.
type Catalog struct {
	// Document is the seed document as JSON, handed to clients verbatim.
	// It is nil when no document was loaded.
	Document json.RawMessage
	// NPCs is the initial roster in document order, ids unique.
	NPCs []NPCDefinition
}

// Empty returns a catalog with no document and no NPCs.
func Empty() *Catalog {
	return &Catalog{}
}

// NPCCount returns the number of NPC definitions.
func (c *Catalog) NPCCount() int {
	return len(c.NPCs)
}
