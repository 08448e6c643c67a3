package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"deepfake-service/pkg/logger"
)

// ServiceName 健康检查中使用的服务名
const ServiceName = "deepfake.v1.DetectionService"

// HealthServer 对外提供标准 grpc.health.v1 检查，停机时先切到 NOT_SERVING
type HealthServer struct {
	addr   string
	server *grpc.Server
	health *health.Server

	mu       sync.Mutex
	listener net.Listener
	done     chan struct{}
}

func NewHealthServer(addr string) *HealthServer {
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)
	return &HealthServer{addr: addr, server: srv, health: hs}
}

func (s *HealthServer) Name() string { return "grpcHealthServer" }

// Addr 实际监听地址，启动前为空
func (s *HealthServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start 监听端口并在后台提供服务
func (s *HealthServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.listener = lis
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	go func() {
		defer close(done)
		logger.Infof("gRPC health server listening addr=%s", lis.Addr())
		if err := s.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Errorf("gRPC server stopped with error: %v", err)
		}
	}()
	return nil
}

// SetServing 根据依赖状态切换健康状态
func (s *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Stop 切换为 NOT_SERVING 后优雅停止
func (s *HealthServer) Stop() error {
	s.health.Shutdown()
	s.server.GracefulStop()
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
	return nil
}
