// Package rpc exposes the standard gRPC health service so orchestrators can
// probe the coordinator without speaking the websocket protocol.
package rpc

import (
	"errors"
	"net"

	"github.com/wfunc/buzzparty/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health-check service name reported alongside "".
const ServiceName = "buzzparty.Coordinator"

// Server manages the gRPC listener.
type Server struct {
	listener net.Listener
	address  string
	grpc     *grpc.Server
	health   *health.Server
}

// NewServer listens on addr and registers the health service.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	hs := health.NewServer()
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		grpc:     gs,
		health:   hs,
	}, nil
}

// Addr is the bound address, useful when listening on port 0.
func (s *Server) Addr() string {
	return s.address
}

// Start marks the coordinator SERVING and blocks until Stop.
func (s *Server) Start() error {
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	logger.Log.Infof("gRPC health server listening on %s", s.address)
	if err := s.grpc.Serve(s.listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop flips every service to NOT_SERVING and drains in-flight calls.
func (s *Server) Stop() {
	logger.Log.Info("Stopping gRPC server.")
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
