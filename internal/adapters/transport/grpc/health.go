package grpc

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is reported next to the overall ("") status.
const ServiceName = "weather-auth"

type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthProbe keeps the standard gRPC health service in sync with the user
// store: SERVING while Ping succeeds, NOT_SERVING otherwise.
type HealthProbe struct {
	hs       *health.Server
	store    Pinger
	log      *zap.Logger
	interval time.Duration
	timeout  time.Duration
}

func NewHealthProbe(hs *health.Server, store Pinger, log *zap.Logger) *HealthProbe {
	return &HealthProbe{
		hs:       hs,
		store:    store,
		log:      log,
		interval: 10 * time.Second,
		timeout:  2 * time.Second,
	}
}

// Check pings the store once and publishes the result.
func (p *HealthProbe) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	st := healthpb.HealthCheckResponse_SERVING
	if err := p.store.Ping(ctx); err != nil {
		p.log.Warn("health: store ping failed", zap.Error(err))
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	p.hs.SetServingStatus("", st)
	p.hs.SetServingStatus(ServiceName, st)
	return st
}

// Run probes until ctx is cancelled, then marks everything NOT_SERVING.
func (p *HealthProbe) Run(ctx context.Context) {
	t := time.NewTicker(p.interval)
	defer t.Stop()

	p.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			p.hs.Shutdown()
			return
		case <-t.C:
			p.Check(ctx)
		}
	}
}
