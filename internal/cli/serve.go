package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/liftcall/internal/adapters/http/api"
	"github.com/okian/liftcall/internal/adapters/http/swagger"
	"github.com/okian/liftcall/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func buildServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dispatch session and the local status API",
		Long: `Configure the fleet from the config file, or attach to a fleet that is
already configured, then serve /status, /request, /configure and /healthz
until SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides status_addr)")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, addr string) error {
	log := logger.Named("serve")

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if addr == "" {
		addr = cfg.StatusAddr
	}

	stopTracing, err := startTracing(cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer func() {
		if err := stopTracing(context.Background()); err != nil {
			log.Warn(ctx, "tracing shutdown failed", logger.Error(err))
		}
	}()

	client, err := newClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to create remote client: %w", err)
	}
	sess := newSession(cfg, client)
	log.Info(ctx, "session started", logger.String("remote", client.BaseURL()))
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := sess.Close(closeCtx); err != nil {
			log.Warn(ctx, "session close failed", logger.Error(err))
		}
	}()

	// A missing fleet is not fatal: it can still be configured over the API.
	if len(cfg.Fleet) > 0 {
		res, err := sess.Configure(ctx, cfg.Fleet)
		if err != nil {
			log.Error(ctx, "startup configuration failed", logger.Error(err))
		} else {
			log.Info(ctx, "fleet configured", logger.String("message", res.Message))
		}
	} else if err := sess.Attach(ctx); err != nil {
		log.Warn(ctx, "no configured fleet to attach to", logger.Error(err))
	}

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(sess).Register(ctx, mux)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}
