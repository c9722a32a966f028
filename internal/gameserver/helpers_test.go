package gameserver

import (
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/runes/internal/game/world"
)

// frame is a decoded outbound message.
type frame map[string]any

func (f frame) typ() string {
	s, _ := f["type"].(string)
	return s
}

// testCatalog seeds one NPC "goblin" at (100,100) with 100 health and one
// NPC "sage" at (400,400).
func testCatalog() *world.Catalog {
	return &world.Catalog{
		Document: json.RawMessage(`{"name":"test world","npcs":[]}`),
		NPCs: []world.NPCDefinition{
			{
				ID: "goblin", Name: "Goblin", X: 100, Y: 100, Health: 100,
				Behavior: "wander", WanderRadius: 50, Interactable: true,
				Color: "#8b4513", Dialogue: []string{"Grr.", "Go away."},
				Width: 32, Height: 32,
			},
			{
				ID: "sage", Name: "Sage", X: 400, Y: 400, Health: 50,
				Behavior: "stationary", Interactable: true,
				Color: "#ffffff", Dialogue: []string{"Hello!"},
				Width: 32, Height: 48,
			},
		},
	}
}

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	return NewEngine(opts, testCatalog(), zaptest.NewLogger(t))
}

// drain returns every frame currently queued on c's outbox.
func drain(t *testing.T, c *Client) []frame {
	t.Helper()
	var out []frame
	for {
		select {
		case data, ok := <-c.Outbox().Frames():
			if !ok {
				return out
			}
			var f frame
			require.NoError(t, json.Unmarshal(data, &f))
			out = append(out, f)
		default:
			return out
		}
	}
}

func ofType(frames []frame, typ string) []frame {
	var out []frame
	for _, f := range frames {
		if f.typ() == typ {
			out = append(out, f)
		}
	}
	return out
}

func containsType(data []byte, typ string) bool {
	var head struct {
		Type string `json:"type"`
	}
	return json.Unmarshal(data, &head) == nil && head.Type == typ
}

func send(t *testing.T, e *Engine, c *Client, msg map[string]any) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	e.HandleMessage(c, data)
}

// join connects a client, joins it as name and returns it with its player id.
// Frames produced by the join are drained.
func join(t *testing.T, e *Engine, name string) (*Client, string) {
	t.Helper()
	c := e.Connect("127.0.0.1:0")
	send(t, e, c, map[string]any{"type": "join", "username": name})
	frames := drain(t, c)
	ok := ofType(frames, TypeJoinSuccess)
	require.Len(t, ok, 1, "join of %q failed: %v", name, frames)
	id, _ := ok[0]["player_id"].(string)
	require.NotEmpty(t, id)
	return c, id
}

func moveTo(t *testing.T, e *Engine, c *Client, x, y float64) {
	t.Helper()
	send(t, e, c, map[string]any{"type": "position_update", "x": x, "y": y})
}

func errorsOf(frames []frame) []string {
	var out []string
	for _, f := range ofType(frames, TypeError) {
		msg, _ := f["message"].(string)
		out = append(out, msg)
	}
	return out
}

var errTransportClosed = errors.New("transport closed")

// fakeTransport is an in-memory Transport.
type fakeTransport struct {
	in        chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	sent    [][]byte
	sentCh  chan []byte
	sendErr error
	// gate, when non-nil, holds every Send until it is closed or the
	// transport is closed.
	gate chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:     make(chan []byte, 16),
		closed: make(chan struct{}),
		sentCh: make(chan []byte, 256),
	}
}

func (f *fakeTransport) Receive() ([]byte, error) {
	select {
	case data, ok := <-f.in:
		if !ok {
			return nil, io.EOF
		}
		return data, nil
	case <-f.closed:
		return nil, errTransportClosed
	}
}

func (f *fakeTransport) Send(data []byte) error {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-f.closed:
			return errTransportClosed
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	select {
	case <-f.closed:
		return errTransportClosed
	default:
	}
	f.sent = append(f.sent, data)
	f.sentCh <- data
	return nil
}

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) RemoteAddr() string {
	return "fake:1"
}

func (f *fakeTransport) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}
