package server

import (
	"context"
	"errors"
	"github.com/Miraines/MoonyAndStarry/weather-auth/internal/adapters/transport/grpc"
	"github.com/Miraines/MoonyAndStarry/weather-auth/internal/adapters/transport/grpc/middleware"
	"github.com/Miraines/MoonyAndStarry/weather-auth/internal/infra/config"
	"net"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"go.uber.org/zap"
	ggrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const grpcStopTimeout = 5 * time.Second

// NewGRPCServer собирает админский gRPC-сервер: health, reflection и
// prometheus-метрики за общей цепочкой interceptor-ов.
func NewGRPCServer(cfg *config.Config, logger *zap.Logger) (*ggrpc.Server, *health.Server, error) {
	opts := []ggrpc.ServerOption{
		ggrpc.UnaryInterceptor(middleware.ChainUnaryServer(logger, cfg.RateLimitRPS, cfg.RateLimitBurst)),
		ggrpc.StreamInterceptor(middleware.ChainStreamServer(logger)),
	}
	if cfg.TLSEnabled() {
		creds, err := credentials.NewServerTLSFromFile(cfg.HTTPSCertFile, cfg.HTTPSKeyFile)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, ggrpc.Creds(creds))
	}

	srv := ggrpc.NewServer(opts...)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)
	grpc_prometheus.Register(srv)
	grpc_prometheus.EnableHandlingTimeHistogram()

	return srv, hs, nil
}

// StartGRPCServer слушает cfg.GRPCAddress и работает до отмены ctx.
func StartGRPCServer(ctx context.Context, cfg *config.Config, store grpc.Pinger, logger *zap.Logger) error {
	lis, err := net.Listen("tcp", cfg.GRPCAddress)
	if err != nil {
		return err
	}
	srv, hs, err := NewGRPCServer(cfg, logger)
	if err != nil {
		_ = lis.Close()
		return err
	}
	go grpc.NewHealthProbe(hs, store, logger).Run(ctx)

	return ServeGRPC(ctx, lis, srv, logger)
}

// ServeGRPC serves on lis and stops gracefully once ctx is done.
func ServeGRPC(ctx context.Context, lis net.Listener, srv *ggrpc.Server, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
		errCh <- srv.Serve(lis)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, ggrpc.ErrServerStopped) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	logger.Info("ctx cancelled, stopping gRPC server…")

	done := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(done)
	}()

	select {
	case <-time.After(grpcStopTimeout):
		srv.Stop()
	case <-done:
	}
	logger.Info("gRPC server stopped")
	return nil
}
