// Package testutil provides helpers shared by integration tests.
package testutil

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// WSClient is a WebSocket test client that speaks the JSON game protocol.
type WSClient struct {
	conn *websocket.Conn
	t    *testing.T
}

// NewWSClient dials url and returns a test client.
//
// Precondition: url must be a ws:// URL with a listening server.
// Postcondition: Returns a connected WSClient or fails the test.
func NewWSClient(t *testing.T, url string) *WSClient {
	t.Helper()
	start := time.Now()

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("connecting to %s: %v [%s]", url, err, time.Since(start))
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	t.Cleanup(func() {
		_ = conn.Close()
	})

	t.Logf("websocket client connected to %s [%s]", url, time.Since(start))
	return &WSClient{conn: conn, t: t}
}

// Conn returns the underlying connection.
func (c *WSClient) Conn() *websocket.Conn {
	return c.conn
}

// SendJSON encodes msg as one text frame.
//
// Postcondition: msg is written to the connection or the test fails.
func (c *WSClient) SendJSON(msg any) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteJSON(msg); err != nil {
		c.t.Fatalf("sending %v: %v", msg, err)
	}
}

// SendRaw writes text as one text frame without encoding it.
func (c *WSClient) SendRaw(text string) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		c.t.Fatalf("sending %q: %v", text, err)
	}
}

// ReadJSON reads the next frame and decodes it as a JSON object.
//
// Postcondition: Returns the decoded object, or fails on timeout or bad JSON.
func (c *WSClient) ReadJSON(timeout time.Duration) map[string]any {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		c.t.Fatalf("reading frame: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		c.t.Fatalf("decoding frame %q: %v", data, err)
	}
	return m
}

// ReadUntilType reads frames until one has the given "type" field, discarding
// the others.
//
// Postcondition: Returns the matching object, or fails on timeout.
func (c *WSClient) ReadUntilType(msgType string, timeout time.Duration) map[string]any {
	c.t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			c.t.Fatalf("no %q frame within %s", msgType, timeout)
		}
		m := c.ReadJSON(remaining)
		if m["type"] == msgType {
			return m
		}
	}
}

// Close closes the underlying connection without a close handshake.
func (c *WSClient) Close() {
	_ = c.conn.Close()
}
