package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

// ClientConfig configuración para cliente gRPC.
type ClientConfig struct {
	// Target dirección del servidor (ej: "ingest.internal:50051")
	Target string

	// Timeout para conexión inicial (solo con Block)
	DialTimeout time.Duration

	// Block bloquea NewClient hasta que la conexión esté lista
	Block bool

	// KeepAlive configuración de keepalive
	KeepAlive *KeepAliveConfig

	// Insecure usar conexión sin TLS
	Insecure bool

	// Dialer reemplaza el dialer TCP (bufconn en tests)
	Dialer func(ctx context.Context, addr string) (net.Conn, error)

	// UnaryInterceptors interceptors para llamadas unary
	UnaryInterceptors []grpc.UnaryClientInterceptor
}

// KeepAliveConfig configuración de keepalive.
type KeepAliveConfig struct {
	// Time intervalo de keepalive pings
	Time time.Duration

	// Timeout timeout para respuesta de ping
	Timeout time.Duration

	// PermitWithoutStream permitir pings sin streams activos
	PermitWithoutStream bool
}

// DefaultClientConfig retorna configuración por defecto.
func DefaultClientConfig(target string) *ClientConfig {
	return &ClientConfig{
		Target:      target,
		DialTimeout: 10 * time.Second,
		Insecure:    true,
		KeepAlive: &KeepAliveConfig{
			Time:                30 * time.Second,
			Timeout:             5 * time.Second,
			PermitWithoutStream: true,
		},
	}
}

// Client wrapper sobre grpc.ClientConn con funcionalidad adicional.
type Client struct {
	conn   *grpc.ClientConn
	config *ClientConfig
	target string
}

// NewClient crea un nuevo cliente gRPC.
//
// Sin Block la conexión se establece en la primera llamada y se reconecta sola.
//
// Example:
//
//	config := grpc.DefaultClientConfig("ingest.internal:50051")
//	config.UnaryInterceptors = append(config.UnaryInterceptors, grpc.LoggingUnaryClientInterceptor(tel))
//	client, err := grpc.NewClient(ctx, config)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
func NewClient(ctx context.Context, config *ClientConfig) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	opts := []grpc.DialOption{}
	if config.Block {
		opts = append(opts, grpc.WithBlock())
	}

	// Credentials
	if config.Insecure {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	// KeepAlive
	if config.KeepAlive != nil {
		kaParams := keepalive.ClientParameters{
			Time:                config.KeepAlive.Time,
			Timeout:             config.KeepAlive.Timeout,
			PermitWithoutStream: config.KeepAlive.PermitWithoutStream,
		}
		opts = append(opts, grpc.WithKeepaliveParams(kaParams))
	}

	if config.Dialer != nil {
		opts = append(opts, grpc.WithContextDialer(config.Dialer))
	}

	// Interceptors
	if len(config.UnaryInterceptors) > 0 {
		opts = append(opts, grpc.WithChainUnaryInterceptor(config.UnaryInterceptors...))
	}

	// Context con timeout para dial
	dialCtx := ctx
	if config.Block && config.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, config.DialTimeout)
		defer cancel()
	}

	conn, err := grpc.DialContext(dialCtx, config.Target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", config.Target, err)
	}

	return &Client{
		conn:   conn,
		config: config,
		target: config.Target,
	}, nil
}

// Conn retorna la conexión gRPC subyacente.
func (c *Client) Conn() *grpc.ClientConn {
	return c.conn
}

// Invoke ejecuta una llamada unary sin stubs generados.
//
// Example:
//
//	err := client.Invoke(ctx, "/fixgate.v1.OrderIngest/Deliver", req, &emptypb.Empty{})
func (c *Client) Invoke(ctx context.Context, method string, req, reply interface{}, opts ...grpc.CallOption) error {
	if c.conn == nil {
		return fmt.Errorf("connection is nil")
	}
	return c.conn.Invoke(ctx, method, req, reply, opts...)
}

// Close cierra la conexión.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Target retorna el target del cliente.
func (c *Client) Target() string {
	return c.target
}

// State retorna el estado de la conexión.
func (c *Client) State() connectivity.State {
	if c.conn == nil {
		return connectivity.Shutdown
	}
	return c.conn.GetState()
}

// IsReady indica si la conexión está lista.
func (c *Client) IsReady() bool {
	return c.State() == connectivity.Ready
}
