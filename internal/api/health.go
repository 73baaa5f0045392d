package api

import (
	"Go2NetSentinel/internal/scorer"
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ScoringService is the gRPC health service name of the scorer.
const ScoringService = "ns.sentinel.Scoring"

// HealthServer reports SERVING over grpc.health.v1 while a model is loaded.
type HealthServer struct {
	holder *scorer.Holder
	health *health.Server
}

// NewHealthServer creates a health server reflecting holder's state.
func NewHealthServer(holder *scorer.Holder) *HealthServer {
	h := &HealthServer{holder: holder, health: health.NewServer()}
	h.Update()
	return h
}

// Register adds the health service to a gRPC server.
func (h *HealthServer) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.health)
}

// Update publishes the current model state.
func (h *HealthServer) Update() {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if h.holder.Loaded() {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ScoringService, status)
}

// Run refreshes the status every interval until ctx is cancelled, then marks
// every service as shutting down.
func (h *HealthServer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.Update()
		case <-ctx.Done():
			h.health.Shutdown()
			log.Debug("gRPC health reporting stopped.")
			return
		}
	}
}

// Check answers a health check directly, without a network round trip.
func (h *HealthServer) Check(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := h.health.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}
