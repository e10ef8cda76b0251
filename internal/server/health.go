// Package server exposes process health over gRPC while the watcher runs.
package server

import (
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported next to the overall "" entry.
const ServiceName = "menu-catalog.watch"

type HealthServer struct {
	grpc   *grpc.Server
	health *health.Server
	lis    net.Listener
	logger *slog.Logger
	errCh  chan error
}

// StartHealth listens on addr and serves the standard health service. The
// initial status is NOT_SERVING until SetServing(true).
func StartHealth(addr string, logger *slog.Logger) (*HealthServer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", addr, "error", err)
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	// Reflection for grpcurl
	reflection.Register(gs)

	s := &HealthServer{grpc: gs, health: hs, lis: lis, logger: logger, errCh: make(chan error, 1)}
	s.SetServing(false)

	logger.Info("health.listening", "addr", lis.Addr().String())
	go func() {
		if err := gs.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			s.errCh <- err
		}
		close(s.errCh)
	}()
	return s, nil
}

// Addr is the bound listen address.
func (s *HealthServer) Addr() string { return s.lis.Addr().String() }

// Errors yields a serve failure, if any, and closes when serving stops.
func (s *HealthServer) Errors() <-chan error { return s.errCh }

func (s *HealthServer) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
	s.logger.Debug("health.status", "status", st.String())
}

// Stop reports NOT_SERVING and stops gracefully.
func (s *HealthServer) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
	s.logger.Info("health.stopped")
}
