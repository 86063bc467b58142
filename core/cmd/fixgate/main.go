// Command fixgate levanta el gateway FIX 4.2.
//
// La configuración se lee de ETCD (/fixgate/{ENV}/...). Un archivo .env en el
// directorio de trabajo puede definir ENV y ETCD_ENDPOINTS.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/twh32/my-fix-project/core/internal"
)

func main() {
	local := flag.Bool("local", false, "No consultar ETCD; usar configuración por defecto")
	listen := flag.String("listen", "", "Sobrescribe server/listen_addr")
	sink := flag.String("sink", "", "Sobrescribe delivery/sink (log, memory, kafka, redis, amqp, postgres, grpc)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "aviso: sin archivo .env, se usan las variables de entorno del sistema")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *local, *listen, *sink); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, local bool, listen, sink string) error {
	cfg := internal.DefaultConfig()
	if !local {
		loaded, err := internal.LoadConfigFromEtcd(ctx)
		if err != nil {
			return fmt.Errorf("cargando configuración: %w", err)
		}
		cfg = loaded
	}
	if listen != "" {
		cfg.ListenAddr = listen
	}
	if sink != "" {
		cfg.Delivery.Sink = sink
	}

	gw, err := internal.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("inicializando gateway: %w", err)
	}
	if err := gw.Start(); err != nil {
		_ = gw.Shutdown(context.Background())
		return fmt.Errorf("iniciando gateway: %w", err)
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := gw.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("cerrando gateway: %w", err)
	}
	return nil
}
