package gameserver

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/runes/internal/game/session"
)

// handleJoin runs the join protocol for c. Checks run in order and the
// first failure wins: name rules, uniqueness, capacity.
//
// Precondition: e.mu is held.
// Postcondition: On success c is bound to a new player, the joiner has been
// sent join_success and every other player player_joined. On failure nothing
// changes and c stays unjoined.
func (e *Engine) handleJoin(c *Client, username string) error {
	if c.playerID != "" {
		return ErrAlreadyJoined
	}

	name, err := session.ValidateName(username)
	if err != nil {
		c.logger.Warn("invalid username rejected",
			zap.String("username", username),
			zap.Error(err),
		)
		return ErrInvalidUsername
	}
	if e.players.NameTaken(name) {
		return ErrUsernameTaken
	}
	if e.players.Full() {
		return ErrServerFull
	}

	id := e.newID()
	playerColor := e.colors.Acquire()
	p := session.NewPlayer(id, name, playerColor, e.opts.SpawnX, e.opts.SpawnY, e.now(), c.outbox)
	if err := e.players.Add(p); err != nil {
		e.colors.Release(playerColor)
		switch {
		case errors.Is(err, session.ErrNameTaken):
			return ErrUsernameTaken
		case errors.Is(err, session.ErrFull):
			return ErrServerFull
		default:
			return fmt.Errorf("registering player: %w", err)
		}
	}

	c.playerID = id
	c.logger = c.logger.With(zap.String("player_id", id), zap.String("player_name", name))

	data := playerDataOf(*p)
	e.bcast.SendTo(c.outbox, JoinSuccess{
		Type:       TypeJoinSuccess,
		PlayerID:   id,
		PlayerData: data,
		GameState:  e.gameStateView(),
		NPCs:       e.npcViews(),
	})
	e.bcast.BroadcastExcept(e.players.Snapshot(), id, PlayerJoined{
		Type:       TypePlayerJoined,
		PlayerID:   id,
		PlayerData: data,
	})

	c.logger.Info("player joined",
		zap.String("color", playerColor),
		zap.Int("players", e.players.Count()),
	)
	return nil
}

// gameStateView builds the public game state snapshot.
//
// Precondition: e.mu is held.
func (e *Engine) gameStateView() GameStateView {
	snap := e.players.Snapshot()
	players := make(map[string]PlayerData, len(snap))
	for _, p := range snap {
		players[p.ID] = playerDataOf(p)
	}
	return GameStateView{
		WorldData:       e.catalog.Document,
		ServerStartTime: formatTime(e.startedAt),
		MaxPlayers:      e.players.Capacity(),
		CurrentPlayers:  len(snap),
		Players:         players,
	}
}

// npcViews builds the public NPC roster keyed by id.
func (e *Engine) npcViews() map[string]NPCView {
	all := e.npcs.All()
	out := make(map[string]NPCView, len(all))
	for _, n := range all {
		out[n.ID] = npcViewOf(n)
	}
	return out
}
