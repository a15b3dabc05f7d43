package server

import (
	"context"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// HealthServer exposes the standard gRPC health service for probes.
type HealthServer struct {
	grpc   *grpc.Server
	health *health.Server
	lis    net.Listener
	logger *slog.Logger
}

// ListenHealth binds addr and registers the health and reflection services.
func ListenHealth(addr string, logger *slog.Logger) (*HealthServer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)
	return &HealthServer{grpc: gs, health: hs, lis: lis, logger: logger}, nil
}

// Addr is the bound listen address.
func (h *HealthServer) Addr() string { return h.lis.Addr().String() }

// Serve reports SERVING and blocks until Shutdown.
func (h *HealthServer) Serve() error {
	h.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	h.logger.Info("grpc.health.serving", "addr", h.Addr())
	err := h.grpc.Serve(h.lis)
	if err == grpc.ErrServerStopped {
		return nil
	}
	return err
}

// Shutdown flips to NOT_SERVING and stops gracefully, or hard when ctx ends first.
func (h *HealthServer) Shutdown(ctx context.Context) {
	h.health.Shutdown()
	done := make(chan struct{})
	go func() {
		h.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		h.grpc.Stop()
	}
	h.logger.Info("grpc.health.stopped")
}
