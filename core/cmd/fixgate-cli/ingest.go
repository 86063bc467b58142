package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/grpc"

	"github.com/twh32/my-fix-project/core/internal/delivery"
	"github.com/twh32/my-fix-project/sdk/domain"
	grpcSDK "github.com/twh32/my-fix-project/sdk/grpc"
	"github.com/twh32/my-fix-project/sdk/telemetry"
	"github.com/twh32/my-fix-project/sdk/utils"
)

func newIngestCmd() *cobra.Command {
	var (
		listen string
		quiet  bool
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Levanta un servidor OrderIngest (destino del sink grpc) e imprime cada orden",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			tel := telemetry.NewNop()
			server, err := grpcSDK.NewServer(&grpcSDK.ServerConfig{
				Address:             listen,
				ShutdownGracePeriod: 5 * time.Second,
				UnaryInterceptors:   []grpc.UnaryServerInterceptor{grpcSDK.LoggingUnaryServerInterceptor(tel)},
			})
			if err != nil {
				return err
			}
			delivery.RegisterIngestSink(server.GRPCServer(), printSink(cmd.OutOrStdout(), quiet))

			fmt.Fprintf(cmd.OutOrStdout(), "OrderIngest escuchando en %s\n", server.Addr())
			tel.Info(ctx, "Ingest server ready", attribute.String("address", server.Addr().String()))
			return serveIngest(ctx, server)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", ":50061", "Dirección de escucha")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "Solo imprimir order_id")
	return cmd
}

func serveIngest(ctx context.Context, server *grpcSDK.Server) error {
	err := server.Serve(ctx)
	if err == nil || errors.Is(err, grpc.ErrServerStopped) || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func printSink(w io.Writer, quiet bool) delivery.Sink {
	return delivery.SinkFunc(func(ctx context.Context, order domain.CanonicalOrder) error {
		if quiet {
			_, err := fmt.Fprintln(w, order.OrderID)
			return err
		}
		data, err := utils.MarshalJSON(order)
		if err != nil {
			return domain.WrapError(domain.ErrDeliveryFailed, "marshal order", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	})
}
