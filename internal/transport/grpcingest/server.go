// Package grpcingest accepts tracker ticks over gRPC. Requests and responses
// are google.protobuf.Struct values so trackers need no generated stubs.
package grpcingest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"tour-counter-go/internal/models"
	"tour-counter-go/internal/services/monitor"
)

const (
	ServiceName    = "tourcounter.v1.TickIngest"
	pushTickMethod = "/" + ServiceName + "/PushTick"
)

// TickIngestServer is the server API of the TickIngest service
type TickIngestServer interface {
	PushTick(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes TickIngest for grpc.ServiceRegistrar
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TickIngestServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PushTick", Handler: pushTickHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tourcounter/v1/ingest.proto",
}

func pushTickHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TickIngestServer).PushTick(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: pushTickMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TickIngestServer).PushTick(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Submitter is the part of the gate manager the ingest service needs
type Submitter interface {
	Submit(ctx context.Context, gateID string, tick models.Tick) error
	DefaultGate() string
}

// Service implements TickIngestServer on top of a Submitter
type Service struct {
	gates   Submitter
	timeout time.Duration
	now     func() time.Time
}

func NewService(gates Submitter, timeout time.Duration) *Service {
	return &Service{gates: gates, timeout: timeout, now: time.Now}
}

func (s *Service) PushTick(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "tick is required")
	}

	gateID, tick, err := decodeTick(in, s.now())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if gateID == "" {
		gateID = s.gates.DefaultGate()
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if err := s.gates.Submit(ctx, gateID, tick); err != nil {
		return nil, toStatus(err)
	}

	out, err := encodeAccepted(models.TickAccepted{
		GateID:    gateID,
		Timestamp: tick.Timestamp,
		Entities:  len(tick.Entities),
		Malformed: tick.CountMalformed(),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, monitor.ErrGateNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, monitor.ErrQueueClosed), errors.Is(err, monitor.ErrMonitorFailed):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Errorf(codes.Internal, "submit tick: %v", err)
	}
}

// Server hosts the TickIngest and gRPC health services
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	logger zerolog.Logger
}

// NewServer registers the ingest service on a new gRPC server
func NewServer(gates Submitter, timeout time.Duration, logger zerolog.Logger) *Server {
	logger = logger.With().Str("service", "grpc_ingest").Logger()

	srv := &Server{
		grpc:   grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(logger))),
		health: health.NewServer(),
		logger: logger,
	}
	srv.grpc.RegisterService(&ServiceDesc, NewService(gates, timeout))
	healthpb.RegisterHealthServer(srv.grpc, srv.health)
	srv.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return srv
}

// Listen opens a TCP listener on port
func Listen(port int) (net.Listener, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("listen on port %d: %w", port, err)
	}
	return lis, nil
}

// Serve blocks until the server stops
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info().Str("addr", lis.Addr().String()).Msg("gRPC tick ingest listening")
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}
	return nil
}

// SetServing flips the health status reported for the ingest service
func (s *Server) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_SERVING
	if !serving {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(ServiceName, st)
}

// Shutdown stops accepting calls and waits for in-flight ones, up to ctx
func (s *Server) Shutdown(ctx context.Context) {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.grpc.Stop()
	}
}

func loggingInterceptor(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		ev := logger.Debug()
		if err != nil {
			ev = logger.Warn().Err(err).Str("code", status.Code(err).String())
		}
		ev.Str("method", info.FullMethod).Dur("duration", time.Since(start)).Msg("grpc_request")
		return resp, err
	}
}
