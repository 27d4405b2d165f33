package grpc

import (
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	googleGrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthReporter exposes grpc.health.v1: the empty service name is the process itself, every breaker
// is reported under its call site name and is NOT_SERVING while open.
type HealthReporter struct {
	server *health.Server
	logger *zap.Logger
}

func NewHealthReporter(logger *zap.Logger, callSites ...string) *HealthReporter {
	server := health.NewServer()
	server.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	for _, name := range callSites {
		server.SetServingStatus(name, healthpb.HealthCheckResponse_SERVING)
	}

	return &HealthReporter{server: server, logger: logger}
}

// OnStateChange matches resilience.StateListener.
func (r *HealthReporter) OnStateChange(name string, _ gobreaker.State, to gobreaker.State) {
	status := healthpb.HealthCheckResponse_SERVING
	if to == gobreaker.StateOpen {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}

	r.logger.Info(
		"Health status changed",
		zap.String("service", name),
		zap.String("status", status.String()),
	)

	r.server.SetServingStatus(name, status)
}

func (r *HealthReporter) Shutdown() {
	r.server.Shutdown()
}

func NewServer(reporter *HealthReporter) *googleGrpc.Server {
	s := googleGrpc.NewServer(
		googleGrpc.StatsHandler(otelgrpc.NewServerHandler()),
		googleGrpc.StreamInterceptor(grpc_prometheus.StreamServerInterceptor),
		googleGrpc.UnaryInterceptor(grpc_prometheus.UnaryServerInterceptor),
	)
	healthpb.RegisterHealthServer(s, reporter.server)

	grpc_prometheus.Register(s)

	return s
}
