// Package grpc provee abstracciones de alto nivel sobre google.golang.org/grpc:
// cliente con keepalive e interceptors de telemetría, servidor con graceful
// shutdown y llamadas unary sin stubs generados.
//
// # Cliente
//
//	config := grpc.DefaultClientConfig("ingest.internal:50051")
//	config.UnaryInterceptors = []grpc.UnaryClientInterceptor{
//	    grpc.TracingUnaryClientInterceptor(tel),
//	    grpc.LoggingUnaryClientInterceptor(tel),
//	}
//	client, err := grpc.NewClient(ctx, config)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Invoke(ctx, "/fixgate.v1.OrderIngest/Deliver", req, &emptypb.Empty{})
//
// # Servidor
//
//	server, err := grpc.NewServer(grpc.DefaultServerConfig(":50051"))
//	if err != nil {
//	    return err
//	}
//	server.GRPCServer().RegisterService(&serviceDesc, impl)
//	go server.Serve(ctx)
package grpc
