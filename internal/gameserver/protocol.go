package gameserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cory-johannsen/runes/internal/game/npc"
	"github.com/cory-johannsen/runes/internal/game/session"
)

// Inbound message types.
const (
	TypeJoin           = "join"
	TypePositionUpdate = "position_update"
	TypePing           = "ping"
	TypeNPCInteract    = "npc_interact"
	TypeNPCAttack      = "npc_attack"
)

// Outbound message types.
const (
	TypeJoinSuccess            = "join_success"
	TypePlayerJoined           = "player_joined"
	TypePlayerPosition         = "player_position"
	TypePlayerLeft             = "player_left"
	TypePong                   = "pong"
	TypeNPCInteractionResponse = "npc_interaction_response"
	TypeNPCHealthUpdate        = "npc_health_update"
	TypeNPCDefeated            = "npc_defeated"
	TypeError                  = "error"
)

// timeLayout is used for connected_at and server_start_time.
const timeLayout = "2006-01-02T15:04:05.000000"

// ClientMessage is the union of every inbound message. Only the fields used
// by Type are populated; a null field is treated as absent.
type ClientMessage struct {
	Type      string
	Username  string
	X         *float64
	Y         *float64
	Timestamp json.RawMessage
	NPCID     string
}

// errNotObject is returned by DecodeClientMessage for a frame that is valid
// JSON but not an object.
var errNotObject = errors.New("message is not a JSON object")

// DecodeClientMessage parses one inbound frame. The type is read first and
// then only the fields that type uses, so an unrelated field of the wrong
// JSON type does not reject the message.
//
// Postcondition: Returns an error if raw is not a JSON object, or if "type"
// or a field used by that type has the wrong JSON type.
func DecodeClientMessage(raw []byte) (ClientMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ClientMessage{}, fmt.Errorf("decoding message: %w", err)
	}
	if fields == nil {
		return ClientMessage{}, errNotObject
	}

	var msg ClientMessage
	if err := decodeField(fields, "type", &msg.Type); err != nil {
		return ClientMessage{}, err
	}

	var err error
	switch msg.Type {
	case TypeJoin:
		err = decodeField(fields, "username", &msg.Username)
	case TypePositionUpdate:
		if err = decodeField(fields, "x", &msg.X); err == nil {
			err = decodeField(fields, "y", &msg.Y)
		}
	case TypePing:
		if ts, ok := fields["timestamp"]; ok && !isNull(ts) {
			msg.Timestamp = ts
		}
	case TypeNPCInteract, TypeNPCAttack:
		err = decodeField(fields, "npc_id", &msg.NPCID)
	}
	if err != nil {
		return ClientMessage{}, err
	}
	return msg, nil
}

// decodeField decodes fields[key] into dst. An absent or null key leaves dst
// untouched.
func decodeField(fields map[string]json.RawMessage, key string, dst any) error {
	v, ok := fields[key]
	if !ok || isNull(v) {
		return nil
	}
	if err := json.Unmarshal(v, dst); err != nil {
		return fmt.Errorf("decoding field %q: %w", key, err)
	}
	return nil
}

func isNull(v json.RawMessage) bool {
	return string(bytes.TrimSpace(v)) == "null"
}

// PlayerData is the public projection of a joined player.
type PlayerData struct {
	Name        string  `json:"name"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Color       string  `json:"color"`
	ConnectedAt string  `json:"connected_at"`
}

// GameStateView is the public snapshot of process-wide state sent on join.
type GameStateView struct {
	WorldData       json.RawMessage       `json:"world_data"`
	ServerStartTime string                `json:"server_start_time"`
	MaxPlayers      int                   `json:"max_players"`
	CurrentPlayers  int                   `json:"current_players"`
	Players         map[string]PlayerData `json:"players"`
}

// NPCView is the public projection of an NPC. Dialogue and motion state are
// never sent.
type NPCView struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Health      float64 `json:"health"`
	MaxHealth   float64 `json:"max_health"`
	Behavior    string  `json:"behavior"`
	Color       string  `json:"color"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	IsCustom    bool    `json:"is_custom"`
	CustomImage *string `json:"custom_image"`
}

// JoinSuccess is sent only to the joining connection.
type JoinSuccess struct {
	Type       string             `json:"type"`
	PlayerID   string             `json:"player_id"`
	PlayerData PlayerData         `json:"player_data"`
	GameState  GameStateView      `json:"game_state"`
	NPCs       map[string]NPCView `json:"npcs"`
}

// PlayerJoined announces a new player to everyone else.
type PlayerJoined struct {
	Type       string     `json:"type"`
	PlayerID   string     `json:"player_id"`
	PlayerData PlayerData `json:"player_data"`
}

// PlayerPosition announces a player's new position to everyone else.
type PlayerPosition struct {
	Type     string  `json:"type"`
	PlayerID string  `json:"player_id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// PlayerLeft announces a disconnect to the remaining players.
type PlayerLeft struct {
	Type       string `json:"type"`
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
}

// Pong echoes a ping's timestamp back to the sender.
type Pong struct {
	Type      string          `json:"type"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// InteractionResponse carries an NPC's dialogue to the requester.
type InteractionResponse struct {
	Type     string   `json:"type"`
	NPCID    string   `json:"npc_id"`
	NPCName  string   `json:"npc_name"`
	Dialogue []string `json:"dialogue"`
}

// NPCHealthUpdate is broadcast to everyone after an attack lands.
type NPCHealthUpdate struct {
	Type      string  `json:"type"`
	NPCID     string  `json:"npc_id"`
	Health    float64 `json:"health"`
	MaxHealth float64 `json:"max_health"`
}

// NPCDefeated is broadcast to everyone when an attack leaves an NPC at zero health.
type NPCDefeated struct {
	Type    string `json:"type"`
	NPCID   string `json:"npc_id"`
	NPCName string `json:"npc_name"`
}

// ErrorMessage reports a failure to a single connection.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func formatTime(t time.Time) string {
	return t.Format(timeLayout)
}

func playerDataOf(p session.Player) PlayerData {
	return PlayerData{
		Name:        p.Name,
		X:           p.X,
		Y:           p.Y,
		Color:       p.Color,
		ConnectedAt: formatTime(p.ConnectedAt),
	}
}

func npcViewOf(n npc.NPC) NPCView {
	return NPCView{
		ID:          n.ID,
		Name:        n.Name,
		X:           n.X,
		Y:           n.Y,
		Health:      n.Health,
		MaxHealth:   n.MaxHealth,
		Behavior:    n.Behavior,
		Color:       n.Color,
		Width:       n.Width,
		Height:      n.Height,
		IsCustom:    n.IsCustom,
		CustomImage: n.CustomImage,
	}
}

func errorMessage(msg string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Message: msg}
}
