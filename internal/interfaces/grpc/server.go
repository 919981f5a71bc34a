// Package grpc serves the ranking API over gRPC next to the HTTP server.
// Messages travel as JSON through a registered codec, so no generated
// protobuf stubs are needed; the standard health service keeps protobuf.
package grpc

import (
	"context"
	"fmt"
	"net"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/turtacn/DataMention-Intelligence/internal/config"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/prometheus"
)

const defaultGracefulTimeout = 10 * time.Second

var defaultKeepaliveParams = keepalive.ServerParameters{
	MaxConnectionIdle:     15 * time.Minute,
	MaxConnectionAge:      30 * time.Minute,
	MaxConnectionAgeGrace: 5 * time.Second,
	Time:                  5 * time.Minute,
	Timeout:               time.Second,
}

var defaultKeepalivePolicy = keepalive.EnforcementPolicy{
	MinTime:             5 * time.Second,
	PermitWithoutStream: true,
}

// Validator is implemented by requests that check themselves before the
// handler runs.
type Validator interface {
	Validate() error
}

// Option configures the Server.
type Option func(*serverOptions)

type serverOptions struct {
	logger   logging.Logger
	metrics  *prometheus.PipelineMetrics
	listener net.Listener
}

func WithLogger(l logging.Logger) Option {
	return func(o *serverOptions) { o.logger = l }
}

func WithMetrics(m *prometheus.PipelineMetrics) Option {
	return func(o *serverOptions) { o.metrics = m }
}

// WithListener serves on lis instead of binding grpc.port.
func WithListener(lis net.Listener) Option {
	return func(o *serverOptions) { o.listener = lis }
}

// Server wraps a grpc.Server with the health service, the interceptor chain
// and graceful shutdown.
type Server struct {
	grpcServer      *grpc.Server
	listener        net.Listener
	health          *health.Server
	gracefulTimeout time.Duration
	logger          logging.Logger

	mu      sync.Mutex
	started bool
}

// NewServer binds the listener and registers the health service, plus
// reflection when cfg.Reflection is set.
func NewServer(cfg config.GRPCConfig, opts ...Option) (*Server, error) {
	o := &serverOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logging.NewNopLogger()
	}
	if o.metrics == nil {
		o.metrics = prometheus.NewNopPipelineMetrics()
	}

	lis := o.listener
	if lis == nil {
		addr := fmt.Sprintf(":%d", cfg.Port)
		var err error
		if lis, err = net.Listen("tcp", addr); err != nil {
			return nil, fmt.Errorf("grpc listen on %s: %w", addr, err)
		}
	}

	grpcOpts := []grpc.ServerOption{
		grpc.KeepaliveParams(defaultKeepaliveParams),
		grpc.KeepaliveEnforcementPolicy(defaultKeepalivePolicy),
		grpc.ChainUnaryInterceptor(
			recoveryUnaryInterceptor(o.logger),
			loggingUnaryInterceptor(o.logger),
			metricsUnaryInterceptor(o.metrics),
			validationUnaryInterceptor(),
		),
		grpc.ChainStreamInterceptor(
			recoveryStreamInterceptor(o.logger),
		),
	}
	if cfg.MaxRecvMsgSize > 0 {
		grpcOpts = append(grpcOpts, grpc.MaxRecvMsgSize(cfg.MaxRecvMsgSize))
	}
	if cfg.MaxSendMsgSize > 0 {
		grpcOpts = append(grpcOpts, grpc.MaxSendMsgSize(cfg.MaxSendMsgSize))
	}
	gs := grpc.NewServer(grpcOpts...)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	if cfg.Reflection {
		reflection.Register(gs)
		o.logger.Info("grpc reflection registered")
	}

	timeout := cfg.GracefulTimeout
	if timeout <= 0 {
		timeout = defaultGracefulTimeout
	}
	return &Server{
		grpcServer:      gs,
		listener:        lis,
		health:          hs,
		gracefulTimeout: timeout,
		logger:          o.logger,
	}, nil
}

// RegisterService registers impl and marks its service as serving. Must be
// called before Start.
func (s *Server) RegisterService(desc *grpc.ServiceDesc, impl any) {
	s.grpcServer.RegisterService(desc, impl)
	s.health.SetServingStatus(desc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	s.logger.Info("grpc service registered", logging.String("service", desc.ServiceName))
}

// Start blocks serving until Stop is called. A graceful stop returns nil.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("grpc server already started")
	}
	s.started = true
	s.mu.Unlock()

	s.logger.Info("gRPC server listening", logging.String("addr", s.Addr()))
	if err := s.grpcServer.Serve(s.listener); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}

// Stop reports NOT_SERVING, then drains in-flight calls. Calls still running
// after the graceful timeout are cut off.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	s.health.Shutdown()
	if !started {
		s.grpcServer.Stop()
		_ = s.listener.Close()
		return nil
	}

	stopCtx, cancel := context.WithTimeout(ctx, s.gracefulTimeout)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		s.logger.Info("gRPC server stopped")
	case <-stopCtx.Done():
		s.logger.Warn("grpc graceful stop timed out, forcing stop")
		s.grpcServer.Stop()
	}
	return nil
}

// Addr is the listening address; with port 0 it carries the assigned port.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

func recoveryUnaryInterceptor(logger logging.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("grpc panic recovered",
					logging.String("method", info.FullMethod),
					logging.String("panic", fmt.Sprint(r)),
					logging.String("stack", string(debug.Stack())))
				err = status.Error(codes.Internal, "internal server error")
			}
		}()
		return handler(ctx, req)
	}
}

func recoveryStreamInterceptor(logger logging.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("grpc stream panic recovered",
					logging.String("method", info.FullMethod),
					logging.String("panic", fmt.Sprint(r)),
					logging.String("stack", string(debug.Stack())))
				err = status.Error(codes.Internal, "internal server error")
			}
		}()
		return handler(srv, ss)
	}
}

func isHealthCheck(method string) bool {
	return strings.HasPrefix(method, "/grpc.health.v1.Health/")
}

// loggingUnaryInterceptor logs every call except health checks.
func loggingUnaryInterceptor(logger logging.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if isHealthCheck(info.FullMethod) {
			return handler(ctx, req)
		}
		start := time.Now()
		resp, err := handler(ctx, req)
		fields := []logging.Field{
			logging.String("method", info.FullMethod),
			logging.Int64("duration_ms", time.Since(start).Milliseconds()),
			logging.String("code", status.Code(err).String()),
		}
		if err != nil {
			logger.Warn("grpc request failed", append(fields, logging.Err(err))...)
		} else {
			logger.Info("grpc request", fields...)
		}
		return resp, err
	}
}

func metricsUnaryInterceptor(m *prometheus.PipelineMetrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		service, method := splitMethodName(info.FullMethod)
		prometheus.RecordGRPCRequest(m, service, method, status.Code(err).String(), time.Since(start))
		return resp, err
	}
}

func validationUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if v, ok := req.(Validator); ok {
			if err := v.Validate(); err != nil {
				return nil, toStatus(err)
			}
		}
		return handler(ctx, req)
	}
}

// splitMethodName splits "/pkg.Service/Method" into its two halves.
func splitMethodName(fullMethod string) (string, string) {
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	idx := strings.LastIndex(fullMethod, "/")
	if idx < 0 {
		return "unknown", fullMethod
	}
	return fullMethod[:idx], fullMethod[idx+1:]
}
