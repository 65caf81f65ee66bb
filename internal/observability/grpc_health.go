package observability

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCHealthServer exposes the readiness checks over the standard gRPC health protocol,
// so orchestrators polling gRPC health can watch the process.
type GRPCHealthServer struct {
	server   *grpc.Server
	health   *health.Server
	checks   map[string]HealthCheckFunc
	interval time.Duration
	done     chan struct{}
}

// NewGRPCHealthServer creates a health server that re-evaluates checks every interval.
func NewGRPCHealthServer(checks map[string]HealthCheckFunc, interval time.Duration) *GRPCHealthServer {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	hs := health.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	return &GRPCHealthServer{
		server:   srv,
		health:   hs,
		checks:   checks,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Serve refreshes status once, then serves on lis until Stop.
func (g *GRPCHealthServer) Serve(lis net.Listener) error {
	g.Refresh(context.Background())
	go g.refreshLoop()

	if err := g.server.Serve(lis); err != nil {
		return fmt.Errorf("grpc health server: %w", err)
	}
	return nil
}

// Refresh runs every check and publishes per-dependency and overall status.
func (g *GRPCHealthServer) Refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	deps, allHealthy := RunChecks(ctx, g.checks)
	for name, dep := range deps {
		g.health.SetServingStatus(serviceName+"."+name, servingStatus(dep.Status == "healthy"))
	}
	g.health.SetServingStatus("", servingStatus(allHealthy))
}

func (g *GRPCHealthServer) refreshLoop() {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			g.Refresh(context.Background())
		case <-g.done:
			return
		}
	}
}

// Stop marks everything NOT_SERVING and stops the server.
func (g *GRPCHealthServer) Stop() {
	select {
	case <-g.done:
		return
	default:
		close(g.done)
	}
	g.health.Shutdown()
	g.server.GracefulStop()
}

func servingStatus(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}
