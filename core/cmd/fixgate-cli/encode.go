package main

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/twh32/my-fix-project/core/internal/initiator"
	"github.com/twh32/my-fix-project/sdk/fix"
)

func newEncodeCmd() *cobra.Command {
	var (
		flags  orderFlags
		seq    int
		asHex  bool
		sentAt string
	)

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Imprime un NewOrderSingle codificado (| en lugar de SOH)",
		RunE: func(cmd *cobra.Command, args []string) error {
			order, err := flags.order(flags.clOrdID)
			if err != nil {
				return err
			}

			ts := time.Now()
			if sentAt != "" {
				if ts, err = time.Parse(time.RFC3339, sentAt); err != nil {
					return fmt.Errorf("--sending-time inválido: %w", err)
				}
			}

			raw := fix.Encode(initiator.BuildNewOrderSingle(flags.config("", 0), order, seq, ts))
			if asHex {
				fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(raw))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), fix.Printable(raw))
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVar(&seq, "seq", 1, "MsgSeqNum (34)")
	cmd.Flags().BoolVar(&asHex, "hex", false, "Imprimir en hexadecimal")
	cmd.Flags().StringVar(&sentAt, "sending-time", "", "SendingTime fijo en RFC3339 (default: ahora)")
	return cmd
}
