// Package api exposes process and refresh health over gRPC.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"metalpulse/internal/refresh"
	"metalpulse/internal/util"
)

// RefreshService is the health service name that tracks refresh runs. The
// empty service name reports overall process health.
const RefreshService = "metalpulse.refresh"

var _ refresh.Observer = (*HealthServer)(nil)

// HealthServer reports SERVING for the process and flips RefreshService to
// NOT_SERVING while a refresh is running.
type HealthServer struct {
	hs  *health.Server
	log *slog.Logger
}

// NewHealthServer creates a HealthServer with every service SERVING.
func NewHealthServer(log *slog.Logger) *HealthServer {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(RefreshService, healthpb.HealthCheckResponse_SERVING)
	return &HealthServer{hs: hs, log: util.OrDiscard(log).With("component", "grpc")}
}

// RegisterGRPC registers the health and reflection services on gs.
func (s *HealthServer) RegisterGRPC(gs *grpc.Server) {
	healthpb.RegisterHealthServer(gs, s.hs)
	reflection.Register(gs)
}

// RefreshStarted implements refresh.Observer.
func (s *HealthServer) RefreshStarted(runID string) {
	s.hs.SetServingStatus(RefreshService, healthpb.HealthCheckResponse_NOT_SERVING)
	s.log.Debug("refresh started", "run", runID)
}

// RefreshFinished implements refresh.Observer.
func (s *HealthServer) RefreshFinished(runID string, sum refresh.Summary) {
	s.hs.SetServingStatus(RefreshService, healthpb.HealthCheckResponse_SERVING)
	s.log.Debug("refresh finished", "run", runID, "processed", len(sum.Processed))
}

// Shutdown marks every service NOT_SERVING so watchers drain before the
// listener closes.
func (s *HealthServer) Shutdown() {
	s.hs.Shutdown()
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// Check dials addr and returns the serving status of service.
func Check(ctx context.Context, addr, service string, opts ...grpc.DialOption) (healthpb.HealthCheckResponse_ServingStatus, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("health check: %w", err)
	}
	return resp.GetStatus(), nil
}
