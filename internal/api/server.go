package api

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"staybook/internal/config"
)

// ServiceName is the health service name reported for the booking API.
const ServiceName = "staybook.v1.BookingAPI"

// Checker probes a dependency the API cannot serve without.
type Checker func(ctx context.Context) error

// GRPCServer serves the standard gRPC health protocol for internal probes.
type GRPCServer struct {
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
	log      zerolog.Logger
}

func NewGRPCServer(cfg config.GRPCConfig, logger *zerolog.Logger) (*GRPCServer, error) {
	addr := fmt.Sprintf(":%d", cfg.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpc listen %s: %w", addr, err)
	}
	return newGRPCServer(lis, cfg.Reflection, logger), nil
}

func newGRPCServer(lis net.Listener, withReflection bool, logger *zerolog.Logger) *GRPCServer {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "grpc").Logger()
	}

	unary := ChainUnaryInterceptors(
		RecoveryUnaryInterceptor(l),
		LoggingUnaryInterceptor(l),
	)
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(unary))

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, hs)

	if withReflection {
		reflection.Register(grpcServer)
	}

	return &GRPCServer{server: grpcServer, health: hs, listener: lis, log: l}
}

func (s *GRPCServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *GRPCServer) Serve() error {
	s.log.Info().Str("addr", s.Addr()).Msg("gRPC health listening")
	return s.server.Serve(s.listener)
}

// Monitor runs check every interval and flips the service status
// accordingly until ctx is done.
func (s *GRPCServer) Monitor(ctx context.Context, interval time.Duration, check Checker) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	serving := true
	for {
		s.probe(ctx, check, &serving)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *GRPCServer) probe(ctx context.Context, check Checker, serving *bool) {
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	err := check(probeCtx)
	if ctx.Err() != nil {
		return
	}
	switch {
	case err != nil && *serving:
		s.log.Warn().Err(err).Msg("health check failing")
		s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
		*serving = false
	case err == nil && !*serving:
		s.log.Info().Msg("health check recovered")
		s.setStatus(healthpb.HealthCheckResponse_SERVING)
		*serving = true
	}
}

func (s *GRPCServer) setStatus(st healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

func (s *GRPCServer) Shutdown(ctx context.Context) {
	if s.server == nil {
		return
	}
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn().Msg("gRPC graceful shutdown timed out; forcing stop")
		s.server.Stop()
	}
}
