package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/Bidon15/popbatch/internal/handler"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the planning API over HTTP",
		Long: `Serve POST /v1/plans, GET /healthz and GET /metrics on listen_addr.
Plan requests are rate limited per client when redis_url is set.

The server only plans: it reads chain state and returns the calls, it
never signs or submits.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := openSession(cmd, sessionOptions{})
	if err != nil {
		return err
	}
	defer sess.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := handler.ServerOptions{
		CORSOrigins: sess.settings.CORSOrigins,
		RateLimit:   handler.RateLimitConfig{RequestsPerSecond: sess.settings.RateLimit},
	}
	if sess.settings.RedisURL != "" {
		counter, err := handler.NewRedisCounter(ctx, sess.settings.RedisURL)
		if err != nil {
			return err
		}
		defer counter.Close()
		opts.Limiter = counter
	}

	h := handler.NewPlanHandler(sess.builder(), reg, sess.logger)
	srv := &http.Server{
		Addr:              sess.settings.ListenAddr,
		Handler:           h.Handler(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		sess.logger.Info("planning API listening",
			slog.String("addr", srv.Addr),
			slog.String("environment", string(sess.settings.Environment)),
			slog.Bool("rate_limited", opts.Limiter != nil),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	sess.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
