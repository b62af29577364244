// Package grpc serves the standard gRPC health protocol. Each upstream
// dependency is a named service whose status follows its circuit breaker.
package grpc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const defaultProbeInterval = 5 * time.Second

// BreakerProbe reports the current state of one outbound circuit breaker.
type BreakerProbe func() gobreaker.State

type HealthServer struct {
	grpcServer *grpc.Server
	health     *health.Server
	probes     map[string]BreakerProbe
	interval   time.Duration
	logger     *slog.Logger
}

func NewHealthServer(probes map[string]BreakerProbe, logger *slog.Logger) *HealthServer {
	if logger == nil {
		logger = slog.Default()
	}
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)

	// Enable reflection for grpcurl/grpcui
	reflection.Register(grpcServer)

	s := &HealthServer{
		grpcServer: grpcServer,
		health:     hs,
		probes:     probes,
		interval:   defaultProbeInterval,
		logger:     logger.With("component", "grpc_health"),
	}
	s.refresh()
	return s
}

// Serve blocks until the listener fails or Stop is called.
func (s *HealthServer) Serve(lis net.Listener) error {
	s.logger.Info("gRPC health server listening", "addr", lis.Addr().String())
	if err := s.grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}

// Watch refreshes the service statuses until ctx is cancelled.
func (s *HealthServer) Watch(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.refresh()
		case <-ctx.Done():
			return
		}
	}
}

func (s *HealthServer) Stop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}

// refresh maps each breaker onto its health status. Half-open still serves
// so probe requests can close it. The overall status is NOT_SERVING while any
// breaker is open.
func (s *HealthServer) refresh() {
	overall := healthpb.HealthCheckResponse_SERVING
	for name, probe := range s.probes {
		status := healthpb.HealthCheckResponse_SERVING
		if probe() == gobreaker.StateOpen {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			overall = healthpb.HealthCheckResponse_NOT_SERVING
		}
		s.health.SetServingStatus(name, status)
	}
	s.health.SetServingStatus("", overall)
}
