package gameserver

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/runes/internal/game/combat"
	"github.com/cory-johannsen/runes/internal/game/npc"
	"github.com/cory-johannsen/runes/internal/game/session"
)

// NPCHandler answers dialogue requests.
type NPCHandler struct {
	npcs          *npc.Registry
	players       *session.Table
	interactRange float64
}

// NewNPCHandler creates an NPCHandler.
//
// Precondition: npcs and players must be non-nil; interactRange must be >= 0.
func NewNPCHandler(npcs *npc.Registry, players *session.Table, interactRange float64) *NPCHandler {
	return &NPCHandler{npcs: npcs, players: players, interactRange: interactRange}
}

// Interact returns the dialogue of npcID for the player playerID.
//
// Precondition: playerID must identify a joined player.
// Postcondition: Returns the response, or ErrNPCNotFound / ErrTooFar.
// No state is mutated.
func (h *NPCHandler) Interact(playerID, npcID string) (*InteractionResponse, error) {
	p, ok := h.players.Get(playerID)
	if !ok {
		return nil, fmt.Errorf("player %q not found", playerID)
	}
	n, ok := h.npcs.Get(npcID)
	if !ok {
		return nil, ErrNPCNotFound
	}
	if !combat.InRange(p.X, p.Y, n.X, n.Y, h.interactRange) {
		return nil, ErrTooFar
	}
	return &InteractionResponse{
		Type:     TypeNPCInteractionResponse,
		NPCID:    n.ID,
		NPCName:  n.Name,
		Dialogue: n.Dialogue,
	}, nil
}

// handleInteract answers an npc_interact request from c. Requests from an
// unjoined connection are ignored.
//
// Precondition: e.mu is held.
func (e *Engine) handleInteract(c *Client, npcID string) error {
	if c.playerID == "" {
		return nil
	}
	resp, err := e.npcH.Interact(c.playerID, npcID)
	if err != nil {
		return err
	}
	e.bcast.SendTo(c.outbox, resp)
	c.logger.Info("player interacted with npc",
		zap.String("npc_id", resp.NPCID),
		zap.String("npc_name", resp.NPCName),
	)
	return nil
}
