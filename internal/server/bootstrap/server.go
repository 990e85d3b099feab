// Package bootstrap wires configuration into a running campaign server.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campaignhub/internal/config"
	"campaignhub/internal/logging"
	serverHTTP "campaignhub/internal/server/http"

	"golang.org/x/sync/errgroup"
)

// RunServer builds the container and serves until SIGINT or SIGTERM.
func RunServer(cfg config.Config, meta config.Metadata) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return Serve(ctx, cfg, meta, nil, os.Stdout)
}

// Serve runs the server on listener, or on cfg.Server.Addr when listener is
// nil, until ctx is done.
func Serve(ctx context.Context, cfg config.Config, meta config.Metadata, listener net.Listener, logOutput io.Writer) error {
	obs, cleanupObs, err := InitObservability(cfg.Observability, logOutput, nil)
	logger := logging.NewComponentLogger("Main")
	if err != nil {
		logger.Warn("Tracing disabled: %v", err)
	}
	defer cleanupObs()

	logger.Info("Starting campaign server...")
	LogServerConfiguration(logger, cfg, meta)

	container, err := BuildContainer(cfg, obs)
	if err != nil {
		return fmt.Errorf("build container: %w", err)
	}
	if !container.HasCredentials() {
		logger.Warn("Identity credentials are not set; agent calls will fail and campaigns are kept locally")
	}

	router := serverHTTP.NewRouter(serverHTTP.RouterDeps{
		Service:        container.Service,
		Images:         container.Images,
		Health:         container.Health,
		Metrics:        obs.Metrics,
		Tracer:         obs.Tracer,
		Logger:         logging.NewComponentLogger("HTTP"),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		TrustedProxies: cfg.Server.TrustedProxies,
		RateLimit: serverHTTP.RateLimitConfig{
			RequestsPerMinute: cfg.Server.RateLimitPerMinute,
			Burst:             cfg.Server.RateLimitBurst,
		},
		Debug: cfg.Environment == "development",
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: config.Seconds(cfg.Server.ReadHeaderTimeoutSecs, 10*time.Second),
		IdleTimeout:       120 * time.Second,
	}
	return serveUntilDone(ctx, server, listener, config.Seconds(cfg.Server.ShutdownTimeoutSeconds, 15*time.Second), logger)
}

func serveUntilDone(ctx context.Context, server *http.Server, listener net.Listener, shutdownTimeout time.Duration, logger logging.Logger) error {
	logger = logging.OrNop(logger)
	if listener == nil {
		ln, err := net.Listen("tcp", server.Addr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", server.Addr, err)
		}
		listener = ln
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server listening on %s", listener.Addr())
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}
