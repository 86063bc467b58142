package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/twh32/my-fix-project/sdk/domain"
	grpcSDK "github.com/twh32/my-fix-project/sdk/grpc"
	"github.com/twh32/my-fix-project/sdk/telemetry"
	"github.com/twh32/my-fix-project/sdk/utils"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Servicio OrderIngest. No hay .proto: el request es un google.protobuf.Struct
// con los campos JSON de la orden canónica y la respuesta es Empty.
const (
	IngestServiceName   = "fixgate.v1.OrderIngest"
	IngestDeliverMethod = "/fixgate.v1.OrderIngest/Deliver"
)

// OrderIngestServer lado servidor de OrderIngest.
type OrderIngestServer interface {
	Deliver(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error)
}

// IngestServiceDesc descriptor registrable en un *grpc.Server.
var IngestServiceDesc = grpc.ServiceDesc{
	ServiceName: IngestServiceName,
	HandlerType: (*OrderIngestServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Deliver",
			Handler:    orderIngestDeliverHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "fixgate/v1/ingest.proto",
}

func orderIngestDeliverHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderIngestServer).Deliver(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: IngestDeliverMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(OrderIngestServer).Deliver(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterIngestSink expone sink como servicio OrderIngest en s.
func RegisterIngestSink(s *grpc.Server, sink Sink) {
	s.RegisterService(&IngestServiceDesc, &ingestServer{sink: sink})
}

type ingestServer struct {
	sink Sink
}

func (s *ingestServer) Deliver(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	order, err := OrderFromStruct(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.sink.Deliver(ctx, order); err != nil {
		code := codes.Internal
		if domain.IsRetryable(domain.CodeOf(err)) {
			code = codes.Unavailable
		}
		return nil, status.Error(code, err.Error())
	}
	return &emptypb.Empty{}, nil
}

// OrderToStruct convierte la orden a Struct respetando sus nombres JSON.
func OrderToStruct(order domain.CanonicalOrder) (*structpb.Struct, error) {
	data, err := utils.MarshalJSON(order)
	if err != nil {
		return nil, err
	}
	fields, err := utils.JSONToMap(data)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(fields)
}

// OrderFromStruct inverso de OrderToStruct.
func OrderFromStruct(s *structpb.Struct) (domain.CanonicalOrder, error) {
	var order domain.CanonicalOrder
	data, err := utils.MarshalJSON(s.AsMap())
	if err != nil {
		return order, err
	}
	if err := utils.UnmarshalJSON(data, &order); err != nil {
		return order, fmt.Errorf("decode canonical order: %w", err)
	}
	return order, nil
}

// GRPCConfig configuración del sink gRPC.
type GRPCConfig struct {
	Target  string
	Timeout time.Duration
}

// GRPCSink entrega cada orden con una llamada unary a OrderIngest/Deliver.
type GRPCSink struct {
	client  *grpcSDK.Client
	timeout time.Duration
}

// NewGRPCSink crea el cliente gRPC con interceptors de logging y tracing.
//
// La conexión se establece en la primera entrega.
func NewGRPCSink(ctx context.Context, cfg GRPCConfig, tel *telemetry.Client) (*GRPCSink, error) {
	if cfg.Target == "" {
		return nil, domain.NewError(domain.ErrInvalidConfig, "grpc sink requires a target")
	}
	clientCfg := grpcSDK.DefaultClientConfig(cfg.Target)
	clientCfg.UnaryInterceptors = append(clientCfg.UnaryInterceptors,
		grpcSDK.TracingUnaryClientInterceptor(tel),
		grpcSDK.LoggingUnaryClientInterceptor(tel),
		grpcSDK.ErrorHandlingUnaryClientInterceptor(),
	)
	client, err := grpcSDK.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, domain.WrapError(domain.ErrSinkUnavailable, "grpc dial", err)
	}
	return NewGRPCSinkWithClient(client, cfg.Timeout), nil
}

// NewGRPCSinkWithClient crea el sink sobre un cliente existente.
func NewGRPCSinkWithClient(client *grpcSDK.Client, timeout time.Duration) *GRPCSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &GRPCSink{client: client, timeout: timeout}
}

// Name implementa Named.
func (s *GRPCSink) Name() string { return "grpc" }

// Deliver implementa Sink.
func (s *GRPCSink) Deliver(ctx context.Context, order domain.CanonicalOrder) error {
	req, err := OrderToStruct(order)
	if err != nil {
		return domain.WrapError(domain.ErrDeliveryFailed, "encode canonical order", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Invoke(callCtx, IngestDeliverMethod, req, &emptypb.Empty{}); err != nil {
		code := domain.ErrSinkUnavailable
		if status.Code(err) == codes.InvalidArgument {
			code = domain.ErrDeliveryFailed
		}
		return domain.WrapError(code, fmt.Sprintf("grpc deliver to %s", s.client.Target()), err)
	}
	return nil
}

// Close cierra la conexión.
func (s *GRPCSink) Close() error {
	return s.client.Close()
}
