package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
)

// ServerConfig configuración para servidor gRPC.
type ServerConfig struct {
	// Address dirección de bind (ej: "0.0.0.0:50051")
	Address string

	// Listener listener ya creado (bufconn en tests); si se setea se ignora Address
	Listener net.Listener

	// KeepAlive configuración de keepalive
	KeepAlive *ServerKeepAliveConfig

	// ShutdownGracePeriod periodo de gracia para shutdown
	ShutdownGracePeriod time.Duration

	// UnaryInterceptors interceptors para llamadas unary
	UnaryInterceptors []grpc.UnaryServerInterceptor
}

// ServerKeepAliveConfig configuración de keepalive del servidor.
type ServerKeepAliveConfig struct {
	// MaxConnectionIdle tiempo máximo de conexión idle antes de cerrar
	MaxConnectionIdle time.Duration

	// Time intervalo de keepalive pings
	Time time.Duration

	// Timeout timeout para respuesta de ping
	Timeout time.Duration
}

// DefaultServerConfig retorna configuración por defecto.
func DefaultServerConfig(address string) *ServerConfig {
	return &ServerConfig{
		Address: address,
		KeepAlive: &ServerKeepAliveConfig{
			MaxConnectionIdle: 5 * time.Minute,
			Time:              30 * time.Second,
			Timeout:           5 * time.Second,
		},
		ShutdownGracePeriod: 10 * time.Second,
	}
}

// Server wrapper sobre grpc.Server con listener y graceful shutdown.
type Server struct {
	grpcServer *grpc.Server
	config     *ServerConfig
	listener   net.Listener
}

// NewServer crea un servidor gRPC y su listener.
//
// Example:
//
//	server, err := grpc.NewServer(grpc.DefaultServerConfig(":50051"))
//	if err != nil {
//	    return err
//	}
//	server.GRPCServer().RegisterService(&desc, impl)
//	go server.Serve(ctx)
func NewServer(config *ServerConfig) (*Server, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	opts := []grpc.ServerOption{}

	// KeepAlive
	if config.KeepAlive != nil {
		opts = append(opts, grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle: config.KeepAlive.MaxConnectionIdle,
			Time:              config.KeepAlive.Time,
			Timeout:           config.KeepAlive.Timeout,
		}))
		opts = append(opts, grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             10 * time.Second,
			PermitWithoutStream: true,
		}))
	}

	// Interceptors
	if len(config.UnaryInterceptors) > 0 {
		opts = append(opts, grpc.ChainUnaryInterceptor(config.UnaryInterceptors...))
	}

	listener := config.Listener
	if listener == nil {
		var err error
		listener, err = net.Listen("tcp", config.Address)
		if err != nil {
			return nil, fmt.Errorf("failed to listen on %s: %w", config.Address, err)
		}
	}

	return &Server{
		grpcServer: grpc.NewServer(opts...),
		config:     config,
		listener:   listener,
	}, nil
}

// GRPCServer retorna el servidor gRPC subyacente para registrar servicios.
func (s *Server) GRPCServer() *grpc.Server {
	return s.grpcServer
}

// Addr retorna la dirección en la que el servidor está escuchando.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve inicia el servidor y bloquea hasta error o cancelación del contexto.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.grpcServer.Serve(s.listener)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown hace un graceful shutdown acotado por ShutdownGracePeriod.
func (s *Server) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()

	timeout := s.config.ShutdownGracePeriod
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		s.grpcServer.Stop()
		return fmt.Errorf("forced shutdown after %v", timeout)
	case <-ctx.Done():
		s.grpcServer.Stop()
		return ctx.Err()
	}
}

// Stop detiene el servidor inmediatamente (no graceful).
func (s *Server) Stop() {
	s.grpcServer.Stop()
}
