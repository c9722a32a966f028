// Package ws accepts WebSocket connections and hands each one to a
// SessionHandler.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/runes/internal/config"
)

// shutdownTimeout bounds the HTTP server shutdown in Stop.
const shutdownTimeout = 5 * time.Second

// SessionHandler processes one connected WebSocket session.
type SessionHandler interface {
	HandleSession(ctx context.Context, conn *Conn) error
}

// SessionHandlerFunc adapts a function to SessionHandler.
type SessionHandlerFunc func(ctx context.Context, conn *Conn) error

// HandleSession calls f.
func (f SessionHandlerFunc) HandleSession(ctx context.Context, conn *Conn) error {
	return f(ctx, conn)
}

// Acceptor serves HTTP on the configured address, upgrades requests on the
// configured path to WebSocket and dispatches each connection to a
// SessionHandler.
type Acceptor struct {
	cfg      config.WebsocketConfig
	handler  SessionHandler
	logger   *zap.Logger
	upgrader websocket.Upgrader

	listener net.Listener
	srv      *http.Server
	quit     chan struct{}
	mu       sync.Mutex
	running  bool

	// sessMu orders session registration against Stop: once quit is
	// closed under sessMu no further wg.Add happens.
	sessMu sync.Mutex
	wg     sync.WaitGroup
}

// NewAcceptor creates a WebSocket acceptor with the given configuration.
//
// Precondition: cfg must have a valid port and path; handler and logger must be non-nil.
// Postcondition: Returns an Acceptor ready to be started with ListenAndServe.
func NewAcceptor(cfg config.WebsocketConfig, handler SessionHandler, logger *zap.Logger) *Acceptor {
	return &Acceptor{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		quit: make(chan struct{}),
	}
}

// ListenAndServe starts the listener and serves until Stop is called.
// This method blocks until the acceptor is stopped.
//
// Precondition: The acceptor must not already be running.
// Postcondition: The listener is closed when this method returns.
func (a *Acceptor) ListenAndServe() error {
	start := time.Now()

	listener, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.cfg.Addr(), err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(a.cfg.Path, a.serveWS)
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.mu.Lock()
	a.listener = listener
	a.srv = srv
	a.running = true
	a.mu.Unlock()

	a.logger.Info("websocket acceptor listening",
		zap.String("addr", listener.Addr().String()),
		zap.String("path", a.cfg.Path),
		zap.Duration("startup", time.Since(start)),
	)

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving websocket: %w", err)
	}
	return nil
}

// serveWS upgrades a single HTTP request and runs its session.
func (a *Acceptor) serveWS(w http.ResponseWriter, r *http.Request) {
	if !a.beginSession() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	defer a.wg.Done()

	raw, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Debug("websocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	start := time.Now()
	conn := NewConn(raw, a.cfg)
	defer conn.Close()

	a.logger.Info("client connected",
		zap.String("remote_addr", conn.RemoteAddr()),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel context and drop the socket when quit signal received
	go func() {
		select {
		case <-a.quit:
			cancel()
			_ = conn.Close()
		case <-ctx.Done():
		}
	}()

	if err := a.handler.HandleSession(ctx, conn); err != nil {
		a.logger.Debug("session ended",
			zap.String("remote_addr", conn.RemoteAddr()),
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
	} else {
		a.logger.Info("session ended cleanly",
			zap.String("remote_addr", conn.RemoteAddr()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

// beginSession registers one session with wg unless Stop has begun.
func (a *Acceptor) beginSession() bool {
	a.sessMu.Lock()
	defer a.sessMu.Unlock()
	select {
	case <-a.quit:
		return false
	default:
	}
	a.wg.Add(1)
	return true
}

// Stop gracefully stops the acceptor, closing the listener and waiting
// for all active sessions to finish.
//
// Postcondition: All connections are closed and goroutines have exited.
func (a *Acceptor) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return
	}
	a.running = false

	a.sessMu.Lock()
	close(a.quit)
	a.sessMu.Unlock()
	if a.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := a.srv.Shutdown(ctx); err != nil {
			a.logger.Warn("http shutdown", zap.Error(err))
		}
		cancel()
	}
	a.wg.Wait()

	a.logger.Info("websocket acceptor stopped")
}

// Addr returns the actual listening address, or empty string if not yet listening.
func (a *Acceptor) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return ""
}

// IsRunning returns whether the acceptor is currently accepting connections.
func (a *Acceptor) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}
