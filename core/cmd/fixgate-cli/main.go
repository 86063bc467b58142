// Command fixgate-cli herramientas operativas para el gateway FIX.
//
//	fixgate-cli send   --addr localhost:5001 --symbol BOND_XYZ --qty 100 --price 101.50
//	fixgate-cli watch  --addr localhost:5001
//	fixgate-cli encode --cl-ord-id ORDER123 --seq 1
//	fixgate-cli ingest --listen :50061
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/twh32/my-fix-project/core/internal/initiator"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fixgate-cli",
		Short:         "Herramientas operativas para el gateway FIX",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newSendCmd(),
		newWatchCmd(),
		newEncodeCmd(),
		newIngestCmd(),
	)
	return root
}

// orderFlags flags compartidos por send y encode.
type orderFlags struct {
	sender  string
	target  string
	clOrdID string
	symbol  string
	qty     int
	price   string
}

func (f *orderFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.sender, "sender", "SENDER", "SenderCompID (49)")
	cmd.Flags().StringVar(&f.target, "target", "TARGET", "TargetCompID (56)")
	cmd.Flags().StringVar(&f.clOrdID, "cl-ord-id", "ORDER", "ClOrdID (11); con --count se agrega el número de secuencia")
	cmd.Flags().StringVar(&f.symbol, "symbol", "BOND_XYZ", "Symbol (55)")
	cmd.Flags().IntVar(&f.qty, "qty", 100, "OrderQty (38)")
	cmd.Flags().StringVar(&f.price, "price", "101.50", "Price (44)")
}

func (f *orderFlags) order(clOrdID string) (initiator.Order, error) {
	price, err := decimal.NewFromString(f.price)
	if err != nil {
		return initiator.Order{}, fmt.Errorf("precio inválido %q: %w", f.price, err)
	}
	return initiator.Order{
		ClOrdID:  clOrdID,
		Symbol:   f.symbol,
		Quantity: f.qty,
		Price:    price,
	}, nil
}

func (f *orderFlags) config(addr string, timeout time.Duration) initiator.Config {
	cfg := initiator.DefaultConfig()
	cfg.Addr = addr
	cfg.SenderCompID = f.sender
	cfg.TargetCompID = f.target
	if timeout > 0 {
		cfg.ReadTimeout = timeout
	}
	return cfg
}
