package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fwojciec/pluck/extraction"
	pluckhttp "github.com/fwojciec/pluck/http"
	plprom "github.com/fwojciec/pluck/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

// Run executes the serve command. It blocks until the context is cancelled
// or a listener fails.
func (c *ServeCmd) Run(deps *Dependencies) error {
	cfg := deps.Config

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := plprom.NewMetrics(reg)

	extractor := plprom.NewInstrumentedExtractor(deps.Extractor, metrics)

	sessions := pluckhttp.NewSessions(func(profile string) *extraction.Client {
		return extraction.NewClient(extractor, deps.Credentials, profile,
			extraction.WithWelcomeDelay(cfg.WelcomeDelay),
			extraction.WithDefaultCredential(cfg.Firecrawl.Key),
		)
	})
	defer sessions.Close()

	server := pluckhttp.NewServer(sessions)
	server.Addr = cfg.Server.Addr
	server.Logger = deps.Logger
	server.Metrics = metrics
	server.RateLimit = cfg.Server.RateLimit
	server.AllowedOrigins = cfg.Server.AllowedOrigins
	server.WelcomeDelay = cfg.WelcomeDelay
	if cfg.Server.MetricsAddr == "" {
		server.Gatherer = reg
	}

	if err := server.Open(); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", err)
		return fmt.Errorf("failed to listen on %q: %w", cfg.Server.Addr, err)
	}
	deps.Logger.Info().Str("url", server.URL()).Str("store", cfg.Store).Msg("serving")

	g, ctx := errgroup.WithContext(deps.Ctx)
	g.Go(func() error {
		<-ctx.Done()
		return server.Close()
	})

	if cfg.Server.MetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:              cfg.Server.MetricsAddr,
			Handler:           plprom.Handler(reg),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			deps.Logger.Info().Str("addr", cfg.Server.MetricsAddr).Msg("serving metrics")
			if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), pluckhttp.ShutdownTimeout)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	deps.Logger.Info().Msg("shut down")
	return nil
}
