// Package admin exposes the operational gRPC endpoint of the game server.
// Today that is the standard grpc.health.v1.Health service, so load
// balancers and orchestrators can probe readiness.
package admin

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/cory-johannsen/runes/internal/config"
)

// GameService is the health service name reported for the game engine.
const GameService = "runes.Game"

// HealthServer serves grpc.health.v1.Health for the overall server ("")
// and for GameService. Both report NOT_SERVING until MarkReady is called.
type HealthServer struct {
	cfg    config.AdminConfig
	logger *zap.Logger
	health *health.Server
	grpc   *grpc.Server

	mu       sync.Mutex
	listener net.Listener
	stopped  bool
}

// NewHealthServer builds a health server that has not started listening.
//
// Precondition: logger must be non-nil.
// Postcondition: Every reported service is NOT_SERVING.
func NewHealthServer(cfg config.AdminConfig, logger *zap.Logger) *HealthServer {
	h := health.NewServer()
	for _, svc := range []string{"", GameService} {
		h.SetServingStatus(svc, healthpb.HealthCheckResponse_NOT_SERVING)
	}
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, h)
	return &HealthServer{
		cfg:    cfg,
		logger: logger,
		health: h,
		grpc:   srv,
	}
}

// Start listens on the configured address and serves until Stop is called.
//
// Postcondition: Returns nil after a graceful Stop, or the listen/serve error.
func (s *HealthServer) Start() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	lis, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr(), err)
	}
	s.listener = lis
	s.mu.Unlock()

	s.logger.Info("admin health endpoint listening", zap.String("addr", lis.Addr().String()))
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serving grpc health: %w", err)
	}
	return nil
}

// Stop reports NOT_SERVING and gracefully stops the gRPC server.
func (s *HealthServer) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.MarkShuttingDown()
	s.grpc.GracefulStop()
}

// MarkReady switches every reported service to SERVING.
func (s *HealthServer) MarkReady() {
	s.health.Resume()
	s.logger.Info("admin health serving")
}

// MarkShuttingDown switches every reported service to NOT_SERVING.
// Later status updates are ignored until MarkReady.
func (s *HealthServer) MarkShuttingDown() {
	s.health.Shutdown()
}

// Addr returns the bound address, or "" before Start has listened.
func (s *HealthServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
