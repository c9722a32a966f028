package world

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned by LoadCatalog when the seed document does not exist.
// The returned catalog is still usable and empty.
var ErrNotFound = errors.New("world seed document not found")

// Format selects the decoder for a seed document.
type Format int

const (
	// FormatJSON decodes the document as JSON.
	FormatJSON Format = iota
	// FormatYAML decodes the document as YAML.
	FormatYAML
)

// FormatForPath picks a Format from the file extension. Anything other than
// .yaml or .yml is treated as JSON.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// seedDocument is the part of the seed document the server interprets.
// Every other key is passed through to clients untouched.
type seedDocument struct {
	NPCs []seedNPC `json:"npcs"`
}

// seedNPC mirrors one npcs entry; nil means the key was absent or null.
type seedNPC struct {
	ID           *string   `json:"id"`
	Name         *string   `json:"name"`
	X            *float64  `json:"x"`
	Y            *float64  `json:"y"`
	Health       *float64  `json:"health"`
	Behavior     *string   `json:"behavior"`
	WanderRadius *float64  `json:"wanderRadius"`
	Interactable *bool     `json:"interactable"`
	Color        *string   `json:"color"`
	Dialogue     *[]string `json:"dialogue"`
	Width        *float64  `json:"width"`
	Height       *float64  `json:"height"`
	IsCustom     *bool     `json:"isCustom"`
	CustomImage  *string   `json:"customImage"`
}

// LoadCatalog reads the seed document at path.
//
// Precondition: path must be non-empty.
// Postcondition: Returns a non-nil Catalog. When the file does not exist the
// catalog is empty and the error wraps ErrNotFound; any other error means the
// document could not be read or parsed and the catalog is empty.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Empty(), fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return Empty(), fmt.Errorf("reading world file %s: %w", path, err)
	}
	cat, err := LoadCatalogFromBytes(data, FormatForPath(path))
	if err != nil {
		return Empty(), fmt.Errorf("loading world file %s: %w", path, err)
	}
	return cat, nil
}

// LoadCatalogFromBytes parses a seed document.
//
// Precondition: data must be a JSON (or YAML) object.
// Postcondition: Returns a Catalog whose Document is the JSON form of data and
// whose NPCs carry every default, or a non-nil error.
func LoadCatalogFromBytes(data []byte, format Format) (*Catalog, error) {
	doc, err := toJSON(data, format)
	if err != nil {
		return nil, err
	}

	var seed seedDocument
	if err := json.Unmarshal(doc, &seed); err != nil {
		return nil, fmt.Errorf("decoding world document: %w", err)
	}

	return &Catalog{
		Document: doc,
		NPCs:     convertSeedNPCs(seed.NPCs),
	}, nil
}

func toJSON(data []byte, format Format) (json.RawMessage, error) {
	switch format {
	case FormatJSON:
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(data, &probe); err != nil {
			return nil, fmt.Errorf("parsing world JSON: %w", err)
		}
		return json.RawMessage(data), nil
	case FormatYAML:
		var root map[string]any
		if err := yaml.Unmarshal(data, &root); err != nil {
			return nil, fmt.Errorf("parsing world YAML: %w", err)
		}
		if root == nil {
			root = map[string]any{}
		}
		out, err := json.Marshal(root)
		if err != nil {
			return nil, fmt.Errorf("converting world YAML to JSON: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown world format %d", format)
	}
}

// convertSeedNPCs applies defaults. A generated id is npc_<n> where n is one
// more than the number of distinct ids seen so far; a repeated id replaces
// the earlier entry in place.
func convertSeedNPCs(entries []seedNPC) []NPCDefinition {
	out := make([]NPCDefinition, 0, len(entries))
	index := make(map[string]int, len(entries))

	for _, e := range entries {
		def := NPCDefinition{
			ID:           stringOr(e.ID, fmt.Sprintf("npc_%d", len(out)+1)),
			Name:         stringOr(e.Name, DefaultNPCName),
			X:            floatOr(e.X, DefaultNPCX),
			Y:            floatOr(e.Y, DefaultNPCY),
			Health:       floatOr(e.Health, DefaultNPCHealth),
			Behavior:     stringOr(e.Behavior, DefaultNPCBehavior),
			WanderRadius: floatOr(e.WanderRadius, DefaultNPCWanderRadius),
			Interactable: boolOr(e.Interactable, true),
			Color:        stringOr(e.Color, DefaultNPCColor),
			Width:        floatOr(e.Width, DefaultNPCWidth),
			Height:       floatOr(e.Height, DefaultNPCHeight),
			IsCustom:     boolOr(e.IsCustom, false),
			CustomImage:  e.CustomImage,
		}
		if e.Dialogue != nil {
			def.Dialogue = append([]string{}, (*e.Dialogue)...)
		} else {
			def.Dialogue = append([]string{}, DefaultDialogue...)
		}

		if i, dup := index[def.ID]; dup {
			out[i] = def
			continue
		}
		index[def.ID] = len(out)
		out = append(out, def)
	}
	return out
}

func stringOr(v *string, def string) string {
	if v == nil {
		return def
	}
	return *v
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
