package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/twh32/my-fix-project/core/internal/initiator"
	"github.com/twh32/my-fix-project/sdk/fix"
	"github.com/twh32/my-fix-project/sdk/telemetry"
)

func newWatchCmd() *cobra.Command {
	var (
		addr     string
		duration time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Abre una sesión sin enviar nada e imprime lo que llega (heartbeats)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			cfg := initiator.DefaultConfig()
			cfg.Addr = addr
			cfg.ReadTimeout = time.Hour
			client, err := initiator.Dial(ctx, cfg, telemetry.NewNop())
			if err != nil {
				return fmt.Errorf("conectando a %s: %w", addr, err)
			}
			defer client.Close()

			out := cmd.OutOrStdout()
			for {
				msg, err := client.ReadMessage(ctx)
				switch {
				case err == nil:
					fmt.Fprintf(out, "%s %s\n", time.Now().Format(time.TimeOnly), msg.String())
				case errors.Is(err, io.EOF):
					fmt.Fprintln(out, "el gateway cerró la conexión")
					return nil
				case ctx.Err() != nil, errors.Is(err, fix.ErrReadTimeout):
					return nil
				default:
					return err
				}
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:5001", "Dirección del gateway")
	cmd.Flags().DurationVar(&duration, "for", 0, "Duración máxima (0 = hasta Ctrl+C)")
	return cmd
}
