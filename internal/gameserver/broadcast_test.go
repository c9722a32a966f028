package gameserver

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/runes/internal/game/session"
)

func recipients(n int) []session.Player {
	out := make([]session.Player, 0, n)
	for i := 0; i < n; i++ {
		id := string(rune('a' + i))
		out = append(out, *session.NewPlayer(id, id, "#000000", 0, 0, time.Now(), session.NewOutbox(id, 4)))
	}
	return out
}

func TestBroadcaster_SendTo(t *testing.T) {
	b := NewBroadcaster(zap.NewNop())
	out := session.NewOutbox("x", 1)
	b.SendTo(out, errorMessage("boom"))
	data := <-out.Frames()
	assert.JSONEq(t, `{"type":"error","message":"boom"}`, string(data))
}

func TestBroadcaster_BroadcastExcept(t *testing.T) {
	b := NewBroadcaster(zap.NewNop())
	rs := recipients(3)
	b.BroadcastExcept(rs, "b", Pong{Type: TypePong})
	assert.Len(t, rs[0].Outbox.Frames(), 1)
	assert.Len(t, rs[1].Outbox.Frames(), 0)
	assert.Len(t, rs[2].Outbox.Frames(), 1)
}

func TestBroadcaster_ClosedRecipientDoesNotStopOthers(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	b := NewBroadcaster(zap.New(core))
	rs := recipients(3)
	require.NoError(t, rs[1].Outbox.Close())

	b.BroadcastAll(rs, Pong{Type: TypePong})

	assert.Len(t, rs[0].Outbox.Frames(), 1)
	assert.Len(t, rs[2].Outbox.Frames(), 1)
	assert.Equal(t, 1, logs.FilterMessage("dropping outbound frame").Len())
}

func TestBroadcaster_NilOutboxIgnored(t *testing.T) {
	b := NewBroadcaster(zap.NewNop())
	assert.NotPanics(t, func() {
		b.SendTo(nil, Pong{Type: TypePong})
		b.BroadcastAll([]session.Player{{ID: "x"}}, Pong{Type: TypePong})
	})
}

func TestBroadcaster_EncodeFailureLogged(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	b := NewBroadcaster(zap.New(core))
	rs := recipients(1)
	b.BroadcastAll(rs, PlayerPosition{Type: TypePlayerPosition, X: math.NaN()})
	assert.Len(t, rs[0].Outbox.Frames(), 0)
	assert.Equal(t, 1, logs.FilterMessage("marshaling outbound message").Len())
}

func TestBroadcaster_OverflowReportsAndSkipsOthers(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	b := NewBroadcaster(zap.New(core))
	var overflowed []string
	b.OnOverflow(func(id string) { overflowed = append(overflowed, id) })

	rs := recipients(2)
	for i := 0; i < 4; i++ {
		require.NoError(t, rs[0].Outbox.Push([]byte("{}")))
	}

	b.BroadcastAll(rs, Pong{Type: TypePong})
	b.BroadcastAll(rs, Pong{Type: TypePong})

	assert.Equal(t, []string{"a"}, overflowed, "reported once; later pushes see a closed outbox")
	assert.True(t, rs[0].Outbox.IsClosed())
	assert.Len(t, rs[1].Outbox.Frames(), 2)
	assert.Equal(t, 1, logs.FilterMessage("outbox overflow, dropping connection").Len())
}
