// Command tnfsd serves a directory tree to TNFS clients over UDP.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gotnfs/internal/config"
	"gotnfs/internal/dispatch"
	"gotnfs/internal/logger"
	"gotnfs/internal/metrics"
	"gotnfs/internal/server"
	"gotnfs/internal/session"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath(), "Path to config file")
	root := flag.String("root", "", "Directory to serve (overrides config file)")
	listenAddr := flag.String("listen", "", "UDP address to bind, e.g. :16384 (overrides config file)")
	logLevel := flag.String("log-level", "", "Log level: DEBUG, INFO, WARN, ERROR (overrides config file)")
	verbose := flag.Bool("verbose", false, "Shorthand for -log-level DEBUG")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tnfsd: %v\n", err)
		os.Exit(1)
	}
	applyFlagOverrides(cfg, *root, *listenAddr, *logLevel, *verbose)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "tnfsd: %v\n", err)
		os.Exit(1)
	}

	logger.SetLevel(cfg.Logging.Level)
	logger.Info("serving %s on %s", cfg.Root, cfg.ListenAddr)

	sink := buildMetricsSink(cfg)

	sessions := session.NewTable(cfg.Sessions.MaxSessions, sink)
	dispatcher := dispatch.New(cfg.Root, sessions, sink)
	srv := server.New(server.Config{
		ListenAddr:      cfg.ListenAddr,
		IdleTimeout:     cfg.Sessions.IdleTimeout,
		SweepInterval:   cfg.Sessions.SweepInterval,
		RateLimitPerSec: cfg.RateLimit.RequestsPerSecond,
	}, sessions, dispatcher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := srv.Serve(ctx); err != nil {
			logger.Error("server error: %v", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("tnfsd is running; press Ctrl+C to stop")
	<-sigChan

	logger.Info("shutting down")
	if err := srv.Stop(); err != nil {
		logger.Error("error during shutdown: %v", err)
	}
}

func applyFlagOverrides(cfg *config.Config, root, listenAddr, logLevel string, verbose bool) {
	if root != "" {
		cfg.Root = root
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if verbose {
		cfg.Logging.Level = "DEBUG"
	}
}

func buildMetricsSink(cfg *config.Config) metrics.Sink {
	if !cfg.Metrics.Enabled {
		return metrics.Noop()
	}

	reg := prometheus.NewRegistry()
	sink := metrics.NewPrometheus(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		logger.Info("metrics listening on %s", cfg.Metrics.ListenAddr)
		if err := http.ListenAndServe(cfg.Metrics.ListenAddr, mux); err != nil {
			logger.Error("metrics server error: %v", err)
		}
	}()

	return sink
}
