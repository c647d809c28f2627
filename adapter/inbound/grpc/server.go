package grpc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/ajkula/dirmon/domain/port/outbound"
)

// ServiceName is the health service name reported alongside the overall ("") status.
const ServiceName = "dirmon.Monitor"

const (
	defaultPollInterval = 5 * time.Second
	stopTimeout         = 10 * time.Second
)

// healthSource is the part of the monitor the health server reads.
type healthSource interface {
	LastError() error
}

// Server exposes the standard grpc.health.v1 service for the monitor.
// The status is NOT_SERVING while the monitor reports a fatal backend error.
type Server struct {
	source       healthSource
	logger       outbound.Logger
	health       *health.Server
	grpcServer   *grpc.Server
	pollInterval time.Duration

	mu      sync.Mutex
	serving bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewServer creates a health server backed by source
func NewServer(source healthSource, logger outbound.Logger) *Server {
	s := &Server{
		source:       source,
		logger:       logger,
		health:       health.NewServer(),
		pollInterval: defaultPollInterval,
		stopCh:       make(chan struct{}),
	}

	s.grpcServer = grpc.NewServer()
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	s.UpdateStatus()

	return s
}

// UpdateStatus refreshes the reported status from the monitor.
func (s *Server) UpdateStatus() {
	status := healthpb.HealthCheckResponse_SERVING
	if err := s.source.LastError(); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}

	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Start listens on address and serves in the background.
func (s *Server) Start(address string) error {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.Serve(lis)
	s.logger.Info("gRPC health server started", "address", lis.Addr().String())
	return nil
}

// Serve serves on lis in the background and starts the status poll.
func (s *Server) Serve(lis net.Listener) {
	s.mu.Lock()
	s.serving = true
	s.mu.Unlock()

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		if err := s.grpcServer.Serve(lis); err != nil {
			s.logger.Error("gRPC server failed", "error", err)
		}
	}()
	go s.poll()
}

func (s *Server) poll() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.UpdateStatus()
		case <-s.stopCh:
			return
		}
	}
}

// Stop shuts the server down, forcing it after a timeout.
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.serving {
		s.mu.Unlock()
		return
	}
	s.serving = false
	s.mu.Unlock()

	s.logger.Info("Stopping gRPC server...")
	s.health.Shutdown()
	close(s.stopCh)

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		s.logger.Info("gRPC server stopped gracefully")
	case <-ctx.Done():
		s.logger.Warn("gRPC server stop timed out, forcing shutdown")
		s.grpcServer.Stop()
	}

	s.wg.Wait()
}
