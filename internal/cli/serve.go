package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run background maintenance until interrupted",
		Long: "Open the engine and keep the index and mirror reconciled on the configured interval. " +
			"Exposes Prometheus metrics when a metrics address is set. Stops on SIGINT or SIGTERM.",
		Run: runServe,
	}

	cmd.Flags().String("metrics-addr", "", "Metrics listen address (default: metrics.addr from config; \"off\" disables)")

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	addr, _ := cmd.Flags().GetString("metrics-addr")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		exitErr("open", err)
	}
	defer a.Close()

	if addr == "" {
		addr = a.cfg.Metrics.Addr
	}

	if err := a.engine.Start(); err != nil {
		exitErr("start maintainer", err)
	}

	var srv *http.Server
	if addr != "" && addr != "off" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", a.metrics.Handler())
		srv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
			}
		}()
		a.log.Info().Str("addr", addr).Msg("metrics endpoint listening")
	}

	a.log.Info().
		Bool("maintenance", a.cfg.Maintenance.Enabled).
		Dur("interval", a.cfg.Maintenance.Interval).
		Msg("serving, press Ctrl+C to stop")

	<-ctx.Done()
	a.log.Info().Msg("shutting down")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		srv.Shutdown(shutdownCtx)
		cancel()
	}

	if _, err := a.engine.Flush(context.Background()); err != nil {
		a.log.Warn().Err(err).Msg("final mirror flush failed")
	}
}
