// Package gameserver implements the session and state-synchronization engine:
// the join/leave state machine, message dispatch, NPC interaction, combat and
// broadcast fan-out.
package gameserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/runes/internal/config"
	"github.com/cory-johannsen/runes/internal/game/color"
	"github.com/cory-johannsen/runes/internal/game/npc"
	"github.com/cory-johannsen/runes/internal/game/session"
	"github.com/cory-johannsen/runes/internal/game/world"
	"github.com/cory-johannsen/runes/internal/observability"
)

// Transport is one accepted duplex connection carrying text frames.
//
// Receive blocks until a frame arrives and returns io.EOF on orderly close.
// Send may be called concurrently with Receive but not with itself.
// Close must be safe to call more than once and must unblock Receive.
type Transport interface {
	Receive() ([]byte, error)
	Send(frame []byte) error
	Close() error
	RemoteAddr() string
}

// Options configures an Engine.
type Options struct {
	MaxPlayers        int
	SpawnX            float64
	SpawnY            float64
	InteractRange     float64
	AttackRange       float64
	AttackDamage      float64
	RebroadcastDefeat bool
	// OutboxSize is the per-connection frame buffer.
	OutboxSize int
}

// DefaultOptions returns the stock game rules.
func DefaultOptions() Options {
	return Options{
		MaxPlayers:        8,
		SpawnX:            100,
		SpawnY:            100,
		InteractRange:     100,
		AttackRange:       80,
		AttackDamage:      10,
		RebroadcastDefeat: true,
		OutboxSize:        session.DefaultOutboxSize,
	}
}

// OptionsFromConfig maps validated configuration onto Options.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		MaxPlayers:        cfg.Game.MaxPlayers,
		SpawnX:            cfg.Game.SpawnX,
		SpawnY:            cfg.Game.SpawnY,
		InteractRange:     cfg.Game.InteractRange,
		AttackRange:       cfg.Game.AttackRange,
		AttackDamage:      cfg.Game.AttackDamage,
		RebroadcastDefeat: cfg.Game.RebroadcastDefeat,
		OutboxSize:        cfg.Websocket.SendBuffer,
	}
}

// Client is the engine-side state of one connection.
type Client struct {
	connID string
	remote string
	outbox *session.Outbox
	logger *zap.Logger

	// guarded by Engine.mu
	playerID string
	closed   bool
	// cancel ends the session running this client, if any.
	cancel context.CancelFunc
}

// ConnID returns the connection identifier used in logs.
func (c *Client) ConnID() string {
	return c.connID
}

// Outbox returns the connection's outbound frame queue.
func (c *Client) Outbox() *session.Outbox {
	return c.outbox
}

// Engine owns all shared game state. Every handler runs under one mutex and
// never performs network I/O; outbound frames go through per-connection outboxes.
// A connection whose outbox overflows is disconnected once the handler that
// overflowed it has released the lock.
type Engine struct {
	mu sync.Mutex

	opts      Options
	catalog   *world.Catalog
	startedAt time.Time

	players *session.Table
	npcs    *npc.Registry
	colors  *color.Pool

	npcH    *NPCHandler
	combatH *CombatHandler
	bcast   *Broadcaster

	// guarded by mu
	clients map[string]*Client

	dropMu     sync.Mutex
	overflowed []string

	logger  *zap.Logger
	now     func() time.Time
	newID   func() string
	connSeq atomic.Uint64
}

// NewEngine creates an Engine seeded from cat.
//
// Precondition: opts.MaxPlayers >= 1; logger must be non-nil; cat may be nil.
// Postcondition: Returns an Engine with no joined players and one NPC per
// catalog definition at full health.
func NewEngine(opts Options, cat *world.Catalog, logger *zap.Logger) *Engine {
	if cat == nil {
		cat = world.Empty()
	}
	now := time.Now()
	players := session.NewTable(opts.MaxPlayers)
	npcs := npc.NewRegistry(cat, now)

	e := &Engine{
		opts:      opts,
		catalog:   cat,
		startedAt: now,
		players:   players,
		npcs:      npcs,
		colors:    color.NewPool(),
		npcH:      NewNPCHandler(npcs, players, opts.InteractRange),
		combatH:   NewCombatHandler(npcs, players, opts.AttackRange, opts.AttackDamage, opts.RebroadcastDefeat),
		bcast:     NewBroadcaster(logger),
		clients:   make(map[string]*Client),
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	e.bcast.OnOverflow(e.markOverflowed)
	if opts.MaxPlayers > e.colors.Size() {
		logger.Warn("player capacity exceeds color palette; players may share the fallback color",
			zap.Int("max_players", opts.MaxPlayers),
			zap.Int("palette_size", e.colors.Size()),
			zap.String("fallback", color.Fallback),
		)
	}
	return e
}

// PlayerCount returns the number of joined players.
func (e *Engine) PlayerCount() int {
	return e.players.Count()
}

// NPCCount returns the number of registered NPCs.
func (e *Engine) NPCCount() int {
	return e.npcs.Len()
}

// Connect registers a new connection in the CONNECTED state.
//
// Postcondition: Returns a Client with an open outbox and no bound player.
func (e *Engine) Connect(remoteAddr string) *Client {
	connID := fmt.Sprintf("conn-%d", e.connSeq.Add(1))
	c := &Client{
		connID: connID,
		remote: remoteAddr,
		outbox: session.NewOutbox(connID, e.opts.OutboxSize),
		logger: observability.ConnLogger(e.logger, connID, remoteAddr),
	}
	e.mu.Lock()
	e.clients[connID] = c
	e.mu.Unlock()
	c.logger.Debug("connection accepted")
	return c
}

// Disconnect moves c to CLOSED. If c had joined, its color is released, it
// is removed from the session table and the remaining players are told.
//
// Postcondition: c's outbox is closed. Repeated calls are no-ops.
func (e *Engine) Disconnect(c *Client) {
	e.disconnect(c)
	e.dropOverflowed()
}

func (e *Engine) disconnect(c *Client) {
	e.mu.Lock()
	if c.closed {
		e.mu.Unlock()
		return
	}
	c.closed = true
	playerID := c.playerID
	delete(e.clients, c.connID)
	e.mu.Unlock()

	e.removePlayer(playerID)
	_ = c.outbox.Close()
	c.logger.Debug("connection closed")
}

// markOverflowed queues the connection owning outboxID for disconnect. It
// runs inside broadcasts, usually with e.mu held.
func (e *Engine) markOverflowed(outboxID string) {
	e.dropMu.Lock()
	defer e.dropMu.Unlock()
	e.overflowed = append(e.overflowed, outboxID)
}

// dropOverflowed disconnects every connection whose outbox overflowed,
// including ones that overflow while earlier drops are broadcast.
//
// Precondition: e.mu is not held.
func (e *Engine) dropOverflowed() {
	for {
		e.dropMu.Lock()
		ids := e.overflowed
		e.overflowed = nil
		e.dropMu.Unlock()
		if len(ids) == 0 {
			return
		}
		for _, id := range ids {
			e.mu.Lock()
			c := e.clients[id]
			var cancel context.CancelFunc
			if c != nil {
				cancel = c.cancel
			}
			e.mu.Unlock()
			if c == nil {
				continue
			}
			c.logger.Warn("disconnecting slow connection")
			e.disconnect(c)
			if cancel != nil {
				cancel()
			}
		}
	}
}

// removePlayer performs leave handling for playerID. Unknown or empty ids
// are ignored, which makes repeated calls harmless.
func (e *Engine) removePlayer(playerID string) {
	if playerID == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.players.Remove(playerID)
	if !ok {
		return
	}
	e.colors.Release(p.Color)
	e.bcast.BroadcastAll(e.players.Snapshot(), PlayerLeft{
		Type:       TypePlayerLeft,
		PlayerID:   p.ID,
		PlayerName: p.Name,
	})
	e.logger.Info("player disconnected",
		zap.String("player_id", p.ID),
		zap.String("player_name", p.Name),
		zap.Int("players", e.players.Count()),
	)
}

// HandleSession runs one connection from accept to close.
// Flow:
//  1. Register the connection
//  2. Spawn a goroutine forwarding outbox frames to the transport
//  3. Main loop: read a frame, handle it
//  4. On read error, stream end or ctx cancel: disconnect and drain
//
// Postcondition: The transport is closed and disconnect handling has run
// exactly once. Returns nil on orderly close or cancellation.
func (e *Engine) HandleSession(ctx context.Context, t Transport) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c := e.Connect(t.RemoteAddr())
	e.mu.Lock()
	c.cancel = cancel
	e.mu.Unlock()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		<-ctx.Done()
		_ = t.Close()
	}()

	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		e.forwardFrames(c, t, cancel)
	}()

	err := e.readLoop(ctx, c, t)

	e.Disconnect(c)
	<-forwarded
	cancel()
	<-closed

	if err == nil || errors.Is(err, io.EOF) || ctx.Err() != nil {
		return nil
	}
	return err
}

func (e *Engine) readLoop(ctx context.Context, c *Client, t Transport) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		raw, err := t.Receive()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.EOF
			}
			return fmt.Errorf("receiving frame: %w", err)
		}
		e.HandleMessage(c, raw)
	}
}

// forwardFrames drains c's outbox to t until the outbox is closed, then
// cancels the session so the reader unblocks. An outbox closed by the engine
// (overflow) therefore ends the session too. A send failure cancels early.
func (e *Engine) forwardFrames(c *Client, t Transport, cancel context.CancelFunc) {
	defer cancel()
	failed := false
	for frame := range c.outbox.Frames() {
		if failed {
			continue
		}
		if err := t.Send(frame); err != nil {
			c.logger.Debug("forward frame send failed", zap.Error(err))
			failed = true
			cancel()
		}
	}
}

// HandleMessage processes one raw inbound frame from c. It never panics and
// never returns an error: faults are logged and reported to c.
func (e *Engine) HandleMessage(c *Client, raw []byte) {
	defer e.dropOverflowed()

	msg, err := DecodeClientMessage(raw)
	if err != nil {
		c.logger.Debug("malformed message", zap.Error(err))
		e.bcast.SendTo(c.outbox, errorMessage(MsgInvalidFormat))
		return
	}

	err = e.dispatch(c, &msg)
	if err == nil {
		return
	}
	var perr *ProtocolError
	if errors.As(err, &perr) {
		e.bcast.SendTo(c.outbox, errorMessage(perr.Message))
		return
	}
	c.logger.Error("handling message",
		zap.String("type", msg.Type),
		zap.Error(err),
	)
	e.bcast.SendTo(c.outbox, errorMessage(MsgServerError))
}

// dispatch routes msg to its handler under the engine lock.
func (e *Engine) dispatch(c *Client, msg *ClientMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic handling %q: %v", msg.Type, r)
		}
	}()

	e.mu.Lock()
	defer e.mu.Unlock()

	if c.closed {
		return nil
	}

	switch msg.Type {
	case TypeJoin:
		return e.handleJoin(c, msg.Username)
	case TypePositionUpdate:
		return e.handlePositionUpdate(c, msg.X, msg.Y)
	case TypePing:
		return e.handlePing(c, msg.Timestamp)
	case TypeNPCInteract:
		return e.handleInteract(c, msg.NPCID)
	case TypeNPCAttack:
		return e.handleAttack(c, msg.NPCID)
	default:
		c.logger.Warn("unknown message type", zap.String("type", msg.Type))
		return nil
	}
}

func (e *Engine) handlePing(c *Client, ts json.RawMessage) error {
	e.bcast.SendTo(c.outbox, Pong{Type: TypePong, Timestamp: ts})
	return nil
}
