// Package session tracks joined players and the outbound frame queues that
// bind each player to its connection.
package session

import (
	"errors"
	"fmt"
	"sync"
)

// DefaultOutboxSize is used when NewOutbox is given a non-positive size.
const DefaultOutboxSize = 64

var (
	// ErrOutboxClosed is returned by Push after Close.
	ErrOutboxClosed = errors.New("outbox closed")
	// ErrOutboxFull is returned by Push when the buffer has no free slot.
	ErrOutboxFull = errors.New("outbox full")
)

// Outbox routes encoded frames to a connection's writer goroutine through a
// bounded channel. Push never blocks. A Push that finds the buffer full
// closes the outbox: the reader has fallen behind and the connection must be
// dropped rather than silently miss frames.
type Outbox struct {
	id         string
	frames     chan []byte
	mu         sync.Mutex
	closed     bool
	overflowed bool
}

// NewOutbox creates an Outbox for the connection identified by id.
//
// Precondition: id should be non-empty; it is used only in error text.
// Postcondition: Returns an Outbox with an open frames channel.
func NewOutbox(id string, bufferSize int) *Outbox {
	if bufferSize <= 0 {
		bufferSize = DefaultOutboxSize
	}
	return &Outbox{
		id:     id,
		frames: make(chan []byte, bufferSize),
	}
}

// ID returns the identifier the outbox was created with.
func (o *Outbox) ID() string {
	return o.id
}

// Push enqueues frame for delivery.
//
// Precondition: frame must be a non-nil byte slice.
// Postcondition: The frame is enqueued, or an error wrapping ErrOutboxClosed
// or ErrOutboxFull is returned and the frame is dropped. After ErrOutboxFull
// the outbox is closed and Overflowed reports true.
func (o *Outbox) Push(frame []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return fmt.Errorf("outbox %s: %w", o.id, ErrOutboxClosed)
	}
	select {
	case o.frames <- frame:
		return nil
	default:
		o.overflowed = true
		o.closed = true
		close(o.frames)
		return fmt.Errorf("outbox %s: %w", o.id, ErrOutboxFull)
	}
}

// Overflowed reports whether the outbox was closed by a Push into a full buffer.
func (o *Outbox) Overflowed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.overflowed
}

// Frames returns the read-only frames channel. It is closed by Close after
// any buffered frames.
func (o *Outbox) Frames() <-chan []byte {
	return o.frames
}

// Close marks the outbox closed and closes the frames channel.
//
// Postcondition: The frames channel is closed. Further Push calls return an error.
func (o *Outbox) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.closed {
		o.closed = true
		close(o.frames)
	}
	return nil
}

// IsClosed reports whether the outbox has been closed.
func (o *Outbox) IsClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
