package admin_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/cory-johannsen/runes/internal/admin"
	"github.com/cory-johannsen/runes/internal/config"
)

func startHealth(t *testing.T) (*admin.HealthServer, healthpb.HealthClient, chan error) {
	t.Helper()
	srv := admin.NewHealthServer(config.AdminConfig{Enabled: true, GRPCHost: "127.0.0.1", GRPCPort: 0}, zaptest.NewLogger(t))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	require.Eventually(t, func() bool { return srv.Addr() != "" }, 2*time.Second, 10*time.Millisecond)

	conn, err := grpc.NewClient(srv.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return srv, healthpb.NewHealthClient(conn), errCh
}

func check(t *testing.T, client healthpb.HealthClient, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

func TestHealthServer_ReadinessTransitions(t *testing.T) {
	srv, client, errCh := startHealth(t)

	for _, svc := range []string{"", admin.GameService} {
		st, err := check(t, client, svc)
		require.NoError(t, err)
		assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, st, "service %q before ready", svc)
	}

	srv.MarkReady()
	for _, svc := range []string{"", admin.GameService} {
		st, err := check(t, client, svc)
		require.NoError(t, err)
		assert.Equal(t, healthpb.HealthCheckResponse_SERVING, st, "service %q after ready", svc)
	}

	srv.MarkShuttingDown()
	st, err := check(t, client, admin.GameService)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, st)

	srv.Stop()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("health server did not stop")
	}
}

func TestHealthServer_UnknownServiceNotFound(t *testing.T) {
	srv, client, _ := startHealth(t)
	t.Cleanup(srv.Stop)

	_, err := check(t, client, "runes.Nope")
	require.Error(t, err)
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestHealthServer_StopBeforeStart(t *testing.T) {
	srv := admin.NewHealthServer(config.AdminConfig{Enabled: true, GRPCHost: "127.0.0.1", GRPCPort: 0}, zaptest.NewLogger(t))
	srv.Stop()
	assert.NoError(t, srv.Start())
	assert.Empty(t, srv.Addr())
}
