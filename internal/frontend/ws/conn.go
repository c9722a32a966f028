package ws

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cory-johannsen/runes/internal/config"
)

// closeGrace bounds the close handshake write.
const closeGrace = time.Second

// Conn wraps an upgraded WebSocket with keepalive handling. A ping is sent
// every PingInterval; if nothing (including the pong) is read for
// PingInterval+PongTimeout the connection is dropped.
//
// Receive must be called from one goroutine and Send from one goroutine;
// Close may be called from any goroutine, any number of times.
type Conn struct {
	raw    *websocket.Conn
	remote string

	pingInterval time.Duration
	idleTimeout  time.Duration
	writeTimeout time.Duration

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

// NewConn wraps raw and starts its keepalive goroutine.
//
// Precondition: raw must be a freshly upgraded, open connection;
// cfg.PingInterval and cfg.PongTimeout must be > 0.
// Postcondition: Returns a Conn whose read deadline is armed.
func NewConn(raw *websocket.Conn, cfg config.WebsocketConfig) *Conn {
	c := &Conn{
		raw:          raw,
		remote:       raw.RemoteAddr().String(),
		pingInterval: cfg.PingInterval,
		idleTimeout:  cfg.PingInterval + cfg.PongTimeout,
		writeTimeout: cfg.WriteTimeout,
		done:         make(chan struct{}),
	}
	if cfg.ReadLimit > 0 {
		raw.SetReadLimit(cfg.ReadLimit)
	}
	_ = raw.SetReadDeadline(time.Now().Add(c.idleTimeout))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(c.idleTimeout))
	})

	go c.keepalive()
	return c
}

// Receive returns the payload of the next data frame. Text and binary frames
// are both accepted.
//
// Postcondition: Returns io.EOF when the peer closed normally or Close was
// called; any other error means the connection is unusable.
func (c *Conn) Receive() ([]byte, error) {
	_, data, err := c.raw.ReadMessage()
	if err != nil {
		select {
		case <-c.done:
			return nil, io.EOF
		default:
		}
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("reading websocket frame: %w", err)
	}
	_ = c.raw.SetReadDeadline(time.Now().Add(c.idleTimeout))
	return data, nil
}

// Send writes frame as a single text message.
//
// Postcondition: Returns a non-nil error if the write failed or timed out.
func (c *Conn) Send(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.raw.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if err := c.raw.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("writing websocket frame: %w", err)
	}
	return nil
}

// Close sends a normal-closure frame and closes the socket.
//
// Postcondition: The socket is closed and the keepalive goroutine exits.
// Subsequent calls are no-ops.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.raw.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
		if cerr := c.raw.Close(); cerr != nil && !errors.Is(cerr, io.EOF) {
			err = cerr
		}
	})
	return err
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string {
	return c.remote
}

func (c *Conn) keepalive() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.writeTimeout)
			if c.writeTimeout <= 0 {
				deadline = time.Now().Add(c.pingInterval)
			}
			if err := c.raw.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}
