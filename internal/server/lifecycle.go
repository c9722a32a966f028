// Package server provides application lifecycle management including
// graceful startup and shutdown with signal handling.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Service represents a long-running component that can be started and stopped.
type Service interface {
	// Start begins the service. It should block until the service is stopped
	// or an error occurs.
	Start() error
	// Stop gracefully stops the service.
	Stop()
}

// FuncService adapts a start/stop function pair into the Service interface.
type FuncService struct {
	StartFn func() error
	StopFn  func()
}

// Start calls the underlying start function.
func (f *FuncService) Start() error { return f.StartFn() }

// Stop calls the underlying stop function.
func (f *FuncService) Stop() { f.StopFn() }

// Lifecycle manages the startup and shutdown of multiple services.
// Services are started in order and stopped in reverse order. Ready hooks
// run once every service has been launched; shutdown hooks run before the
// first service is stopped.
type Lifecycle struct {
	logger     *zap.Logger
	services   []namedService
	onReady    []func()
	onShutdown []func()
	mu         sync.Mutex
}

type namedService struct {
	name    string
	service Service
}

// NewLifecycle creates a new Lifecycle manager.
//
// Precondition: logger must be non-nil.
func NewLifecycle(logger *zap.Logger) *Lifecycle {
	return &Lifecycle{
		logger: logger,
	}
}

// Add registers a named service for lifecycle management.
// Services are started in the order they are added.
//
// Precondition: name must be non-empty; svc must be non-nil.
func (l *Lifecycle) Add(name string, svc Service) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.services = append(l.services, namedService{name: name, service: svc})
}

// OnReady registers fn to run after all services have been launched.
//
// Precondition: fn must be non-nil.
func (l *Lifecycle) OnReady(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onReady = append(l.onReady, fn)
}

// OnShutdown registers fn to run when shutdown begins, before any service
// is stopped.
//
// Precondition: fn must be non-nil.
func (l *Lifecycle) OnShutdown(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onShutdown = append(l.onShutdown, fn)
}

// Run starts all services and blocks until a termination signal is received
// (SIGINT or SIGTERM), the context is cancelled, or a service fails. Services
// are then stopped in reverse order.
//
// Postcondition: All services are stopped when this method returns. The
// returned error is the first service failure, or nil.
func (l *Lifecycle) Run(ctx context.Context) error {
	start := time.Now()

	l.mu.Lock()
	services := append([]namedService(nil), l.services...)
	onReady := append([]func(){}, l.onReady...)
	onShutdown := append([]func(){}, l.onShutdown...)
	l.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start services
	errCh := make(chan error, len(services))
	for _, ns := range services {
		go func() {
			l.logger.Info("starting service",
				zap.String("service", ns.name),
			)
			svcStart := time.Now()
			if err := ns.service.Start(); err != nil {
				l.logger.Error("service failed",
					zap.String("service", ns.name),
					zap.Error(err),
					zap.Duration("uptime", time.Since(svcStart)),
				)
				errCh <- fmt.Errorf("service %s: %w", ns.name, err)
				cancel()
			}
		}()
	}

	l.logger.Info("all services started",
		zap.Int("count", len(services)),
		zap.Duration("startup", time.Since(start)),
	)
	for _, fn := range onReady {
		fn()
	}

	// Wait for signal or context cancellation
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	defer signal.Stop(sigCh)

	var runErr error
	select {
	case sig := <-sigCh:
		l.logger.Info("received signal, shutting down",
			zap.String("signal", sig.String()),
		)
	case err := <-errCh:
		l.logger.Error("service error, shutting down",
			zap.Error(err),
		)
		runErr = err
	case <-ctx.Done():
		select {
		case runErr = <-errCh:
			l.logger.Error("service error, shutting down", zap.Error(runErr))
		default:
			l.logger.Info("context cancelled, shutting down")
		}
	}

	for _, fn := range onShutdown {
		fn()
	}
	// Stop services in reverse order
	l.shutdown(services)

	l.logger.Info("shutdown complete",
		zap.Duration("total_uptime", time.Since(start)),
	)
	return runErr
}

func (l *Lifecycle) shutdown(services []namedService) {
	shutdownStart := time.Now()
	for i := len(services) - 1; i >= 0; i-- {
		ns := services[i]
		svcStart := time.Now()
		l.logger.Info("stopping service",
			zap.String("service", ns.name),
		)
		ns.service.Stop()
		l.logger.Info("service stopped",
			zap.String("service", ns.name),
			zap.Duration("elapsed", time.Since(svcStart)),
		)
	}
	l.logger.Info("all services stopped",
		zap.Duration("shutdown_elapsed", time.Since(shutdownStart)),
	)
}
