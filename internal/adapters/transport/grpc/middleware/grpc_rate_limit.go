package middleware

import (
	"context"
	"net"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// NewRateLimitPerIP создаёт interceptor с LRU-кэшем лимитеров, где запись
// неактивного IP живёт entryTTL и удаляется сама.
func NewRateLimitPerIP(
	limit, burst int, // tokens/sec и размер бакета
	cacheSize int,
	entryTTL time.Duration,
) grpc.UnaryServerInterceptor {

	visitors := lru.NewLRU[string, *rate.Limiter](cacheSize, nil, entryTTL)

	return func(
		ctx context.Context,
		req any,
		_ *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {

		// без peer не знаем клиента, считаем злоупотреблением
		p, ok := peer.FromContext(ctx)
		if !ok || p.Addr == nil {
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}
		host, _, err := net.SplitHostPort(p.Addr.String())
		if err != nil {
			host = p.Addr.String()
		}

		lim, found := visitors.Get(host)
		if !found {
			lim = rate.NewLimiter(rate.Limit(limit), burst)
		}
		visitors.Add(host, lim)

		if !lim.Allow() {
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}
		return handler(ctx, req)
	}
}
