package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/rsned/crafting-resolver/internal/crafting/config"
	"github.com/rsned/crafting-resolver/internal/crafting/engine"
	"github.com/rsned/crafting-resolver/internal/crafting/mcp"
	"github.com/rsned/crafting-resolver/internal/crafting/metrics"
	"github.com/rsned/crafting-resolver/internal/crafting/resolver"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve crafting tools over MCP on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, log, database, err := setup(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			eng, err := engine.New(ctx, database, engineOptions(cfg, metrics.New(reg), log))
			if err != nil {
				return err
			}
			defer eng.Close()

			if cfg.Metrics.Enabled {
				srv := metricsServer(cfg.Metrics.Addr, reg, log)
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
			}

			log.Info("starting MCP server", "db", cfg.Database.Path, "recursion", cfg.Resolver.RecursionEnabled)
			if err := mcp.NewServer(eng, log).Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			log.Info("server stopped")
			return nil
		},
	}
}

func engineOptions(cfg *config.Config, m *metrics.Collector, log *slog.Logger) engine.Options {
	opts := engine.DefaultOptions()
	opts.Resolver = resolver.Options{
		MaxCraftAmount:    cfg.Resolver.MaxCraftAmount,
		MaxRecursionDepth: cfg.Resolver.MaxRecursionDepth,
		DisableRecursion:  !cfg.Resolver.RecursionEnabled,
	}
	opts.DefaultMaxStack = cfg.Resolver.DefaultMaxStack
	opts.CacheSize = cfg.Cache.Size
	opts.CacheTTL = cfg.Cache.TTL
	opts.Prewarm = cfg.Cache.Prewarm
	opts.Metrics = m
	opts.Logger = log
	return opts
}

func metricsServer(addr string, reg *prometheus.Registry, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}
