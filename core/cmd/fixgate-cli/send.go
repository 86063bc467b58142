package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/twh32/my-fix-project/core/internal/initiator"
	"github.com/twh32/my-fix-project/sdk/telemetry"
)

func newSendCmd() *cobra.Command {
	var (
		flags   orderFlags
		addr    string
		count   int
		seq     int
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Envía NewOrderSingle y muestra los Execution Reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			if count <= 0 {
				return fmt.Errorf("--count debe ser positivo")
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			client, err := initiator.Dial(ctx, flags.config(addr, timeout), telemetry.NewNop())
			if err != nil {
				return fmt.Errorf("conectando a %s: %w", addr, err)
			}
			defer client.Close()
			if seq > 0 {
				client.SetNextSeqNum(seq)
			}

			out := cmd.OutOrStdout()
			for i := 0; i < count; i++ {
				id := flags.clOrdID
				if count > 1 {
					id = fmt.Sprintf("%s-%d", flags.clOrdID, client.NextSeqNum())
				}
				order, err := flags.order(id)
				if err != nil {
					return err
				}

				sent, err := client.SendOrder(ctx, order)
				if err != nil {
					return err
				}
				report, heartbeats, err := client.AwaitReport(ctx)
				if err != nil {
					return fmt.Errorf("esperando reporte de %s: %w", id, err)
				}
				if heartbeats > 0 {
					fmt.Fprintf(out, "(%d heartbeats recibidos)\n", heartbeats)
				}
				fmt.Fprintf(out, "→ seq=%d %s\n← %s\n", sent, id, report.String())
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", "localhost:5001", "Dirección del gateway")
	cmd.Flags().IntVar(&count, "count", 1, "Cantidad de órdenes")
	cmd.Flags().IntVar(&seq, "seq", 0, "MsgSeqNum inicial (0 = 1)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Espera máxima por cada reporte")
	return cmd
}
