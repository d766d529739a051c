package middleware

import (
	"time"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_zap "github.com/grpc-ecosystem/go-grpc-middleware/logging/zap"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

const (
	limiterCacheSize = 10_000
	limiterEntryTTL  = time.Hour
)

// ChainUnaryServer: recovery → zap → prometheus → лимит по IP.
func ChainUnaryServer(logger *zap.Logger, limit, burst int) grpc.UnaryServerInterceptor {
	return grpc_middleware.ChainUnaryServer(
		grpc_recovery.UnaryServerInterceptor(),
		grpc_zap.UnaryServerInterceptor(logger),
		grpc_prometheus.UnaryServerInterceptor,
		NewRateLimitPerIP(limit, burst, limiterCacheSize, limiterEntryTTL),
	)
}

// ChainStreamServer covers health Watch and reflection streams. They are
// long-lived, so no rate limit here.
func ChainStreamServer(logger *zap.Logger) grpc.StreamServerInterceptor {
	return grpc_middleware.ChainStreamServer(
		grpc_recovery.StreamServerInterceptor(),
		grpc_zap.StreamServerInterceptor(logger),
		grpc_prometheus.StreamServerInterceptor,
	)
}
