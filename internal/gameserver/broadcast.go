package gameserver

import (
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/cory-johannsen/runes/internal/game/session"
)

// Broadcaster encodes outbound messages and pushes them to player outboxes.
// A closed outbox drops the frame for that recipient only and never
// interrupts delivery to the rest. A full outbox closes itself and is
// reported to the overflow handler so its connection can be dropped.
type Broadcaster struct {
	logger     *zap.Logger
	onOverflow func(outboxID string)
}

// NewBroadcaster creates a Broadcaster.
//
// Precondition: logger must be non-nil.
func NewBroadcaster(logger *zap.Logger) *Broadcaster {
	return &Broadcaster{logger: logger}
}

// OnOverflow registers fn to be called with the outbox id whenever a push
// finds that outbox full. fn runs on the pushing goroutine and must not block.
func (b *Broadcaster) OnOverflow(fn func(outboxID string)) {
	b.onOverflow = fn
}

// SendTo delivers msg to a single outbox.
func (b *Broadcaster) SendTo(out *session.Outbox, msg any) {
	data, ok := b.encode(msg)
	if !ok {
		return
	}
	b.push(out, data)
}

// BroadcastExcept delivers msg to every recipient whose ID is not excludeID.
//
// Precondition: recipients must be a snapshot, not a live view.
func (b *Broadcaster) BroadcastExcept(recipients []session.Player, excludeID string, msg any) {
	data, ok := b.encode(msg)
	if !ok {
		return
	}
	for _, p := range recipients {
		if p.ID == excludeID {
			continue
		}
		b.push(p.Outbox, data)
	}
}

// BroadcastAll delivers msg to every recipient.
//
// Precondition: recipients must be a snapshot, not a live view.
func (b *Broadcaster) BroadcastAll(recipients []session.Player, msg any) {
	b.BroadcastExcept(recipients, "", msg)
}

func (b *Broadcaster) encode(msg any) ([]byte, bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("marshaling outbound message", zap.Error(err))
		return nil, false
	}
	return data, true
}

func (b *Broadcaster) push(out *session.Outbox, data []byte) {
	if out == nil {
		return
	}
	err := out.Push(data)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrOutboxFull):
		b.logger.Warn("outbox overflow, dropping connection",
			zap.String("outbox", out.ID()),
		)
		if b.onOverflow != nil {
			b.onOverflow(out.ID())
		}
	default:
		b.logger.Debug("dropping outbound frame",
			zap.String("outbox", out.ID()),
			zap.Error(err),
		)
	}
}
