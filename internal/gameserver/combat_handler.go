package gameserver

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/runes/internal/game/combat"
	"github.com/cory-johannsen/runes/internal/game/npc"
	"github.com/cory-johannsen/runes/internal/game/session"
)

// AttackResult holds the events produced by one landed attack.
type AttackResult struct {
	// Update is always broadcast.
	Update NPCHealthUpdate
	// Defeated is non-nil when a defeat event must be broadcast.
	Defeated *NPCDefeated
	// Outcome is the raw strike outcome.
	Outcome combat.Outcome
	// NPCName is the target's display name.
	NPCName string
	// Target is the NPC as it stands after the strike.
	Target npc.NPC
}

// CombatHandler resolves player attacks against NPCs.
type CombatHandler struct {
	npcs              *npc.Registry
	players           *session.Table
	attackRange       float64
	damage            float64
	rebroadcastDefeat bool
}

// NewCombatHandler creates a CombatHandler.
//
// Precondition: npcs and players must be non-nil; attackRange >= 0; damage > 0.
// When rebroadcastDefeat is true every attack that leaves the target at zero
// health yields a defeat event; otherwise only the attack that first reaches zero does.
func NewCombatHandler(npcs *npc.Registry, players *session.Table, attackRange, damage float64, rebroadcastDefeat bool) *CombatHandler {
	return &CombatHandler{
		npcs:              npcs,
		players:           players,
		attackRange:       attackRange,
		damage:            damage,
		rebroadcastDefeat: rebroadcastDefeat,
	}
}

// Attack strikes npcID on behalf of playerID.
//
// Precondition: playerID must identify a joined player.
// Postcondition: On success the NPC's health is reduced by the configured
// damage, floored at zero. Returns ErrNPCNotFound or ErrTooFar with no state
// change otherwise.
func (h *CombatHandler) Attack(playerID, npcID string) (*AttackResult, error) {
	p, ok := h.players.Get(playerID)
	if !ok {
		return nil, fmt.Errorf("player %q not found", playerID)
	}
	n, ok := h.npcs.Get(npcID)
	if !ok {
		return nil, ErrNPCNotFound
	}
	if !combat.InRange(p.X, p.Y, n.X, n.Y, h.attackRange) {
		return nil, ErrTooFar
	}

	out, err := h.npcs.Strike(npcID, h.damage)
	if err != nil {
		if errors.Is(err, npc.ErrNotFound) {
			return nil, ErrNPCNotFound
		}
		return nil, fmt.Errorf("striking npc %q: %w", npcID, err)
	}

	after, ok := h.npcs.Get(npcID)
	if !ok {
		return nil, ErrNPCNotFound
	}

	res := &AttackResult{
		Update: NPCHealthUpdate{
			Type:      TypeNPCHealthUpdate,
			NPCID:     npcID,
			Health:    out.Health,
			MaxHealth: out.MaxHealth,
		},
		Outcome: out,
		NPCName: n.Name,
		Target:  after,
	}
	if out.FirstDefeat || (out.Defeated && h.rebroadcastDefeat) {
		res.Defeated = &NPCDefeated{
			Type:    TypeNPCDefeated,
			NPCID:   npcID,
			NPCName: n.Name,
		}
	}
	return res, nil
}

// handleAttack resolves an npc_attack request from c and broadcasts the
// result to every joined player, the attacker included. Requests from an
// unjoined connection are ignored.
//
// Precondition: e.mu is held.
func (e *Engine) handleAttack(c *Client, npcID string) error {
	if c.playerID == "" {
		return nil
	}
	res, err := e.combatH.Attack(c.playerID, npcID)
	if err != nil {
		return err
	}

	recipients := e.players.Snapshot()
	e.bcast.BroadcastAll(recipients, res.Update)
	if res.Defeated != nil {
		e.bcast.BroadcastAll(recipients, *res.Defeated)
	}

	if res.Target.IsDefeated() {
		c.logger.Info("npc defeated",
			zap.String("npc_id", npcID),
			zap.String("npc_name", res.NPCName),
			zap.Bool("first_defeat", res.Outcome.FirstDefeat),
			zap.String("health_state", res.Target.HealthDescription()),
		)
	} else {
		c.logger.Info("player attacked npc",
			zap.String("npc_id", npcID),
			zap.String("npc_name", res.NPCName),
			zap.Float64("damage", e.opts.AttackDamage),
			zap.Float64("health", res.Outcome.Health),
			zap.String("health_state", res.Target.HealthDescription()),
		)
	}
	return nil
}
