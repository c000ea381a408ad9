package grpcapi

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// ServiceName is the health-check service name the monitor reports under.
const ServiceName = "places.monitor"

// Server exposes the standard gRPC health service for the monitor.
type Server struct {
	log    *zap.Logger
	addr   string
	srv    *grpc.Server
	health *health.Server
}

func NewServer(addr string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("grpc")

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(unaryLogger(log)))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	s := &Server{log: log, addr: addr, srv: srv, health: hs}
	s.SetServing(false)
	return s
}

// SetServing flips the status of both the monitor service and the
// server as a whole.
func (s *Server) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Serve marks the monitor as serving and blocks until the server stops.
func (s *Server) Serve(l net.Listener) error {
	s.SetServing(true)
	s.log.Info("grpc listening", zap.String("addr", l.Addr().String()))
	return s.srv.Serve(l)
}

// Shutdown reports NOT_SERVING to watchers, then stops gracefully. If ctx
// expires first the server is stopped hard.
func (s *Server) Shutdown(ctx context.Context) {
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.srv.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		s.srv.Stop()
		<-stopped
	}
}

func unaryLogger(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Debug("grpc request",
			zap.String("method", info.FullMethod),
			zap.Stringer("code", status.Code(err)),
			zap.Duration("took", time.Since(start)),
		)
		return resp, err
	}
}
