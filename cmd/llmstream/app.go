package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ineyio/llmstream"
	"github.com/ineyio/llmstream/catalog"
	"github.com/ineyio/llmstream/meter"
	"github.com/ineyio/llmstream/meter/prom"
	"github.com/ineyio/llmstream/transport/httpstream"
	"github.com/ineyio/llmstream/transport/process"
)

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}

// buildGateway wires config, catalog, transport and meters from the
// command's persistent flags.
func buildGateway(cmd *cobra.Command) (*llmstream.Gateway, error) {
	flags := cmd.Flags()
	verbose, _ := flags.GetBool("verbose")
	cfgPath, _ := flags.GetString("config")
	modelID, _ := flags.GetString("model")
	metricsAddr, _ := flags.GetString("metrics-addr")

	logger := newLogger(verbose)
	slog.SetDefault(logger)

	// Credentials may live in a local .env file.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("load .env", "error", err)
	}

	var cfg llmstream.Config
	if cfgPath != "" {
		loaded, err := llmstream.LoadConfig(cfgPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	entries, err := catalog.FromConfig(cfg)
	if err != nil {
		return nil, err
	}
	registry, err := llmstream.NewRegistry(entries)
	if err != nil {
		return nil, err
	}

	if err := cfg.ApplyDefaultModel(registry); err != nil {
		return nil, err
	}
	if modelID != "" && !registry.SetActive(modelID) {
		return nil, fmt.Errorf("%w: %q", llmstream.ErrModelNotFound, modelID)
	}

	meters := meter.Multi{meter.NewLogMeter(logger)}
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		pm, err := prom.New(reg)
		if err != nil {
			return nil, err
		}
		meters = append(meters, pm)
		go serveMetrics(logger, metricsAddr, reg)
	}

	opts := append(cfg.Options(),
		llmstream.WithLogger(logger),
		llmstream.WithMeter(meters),
	)
	return llmstream.New(registry, newTransport(cfg.Transport, logger), opts...)
}

func newTransport(cfg llmstream.TransportConfig, logger *slog.Logger) llmstream.Transport {
	if cfg.Kind == llmstream.TransportHTTP {
		return httpstream.New()
	}

	opts := []process.Option{process.WithLogger(logger)}
	if cfg.Command != "" || len(cfg.Args) > 0 {
		command := cfg.Command
		if command == "" {
			command = "curl"
		}
		opts = append(opts, process.WithCommand(command, cfg.Args...))
	}
	return process.New(opts...)
}

func serveMetrics(logger *slog.Logger, addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server", "addr", addr, "error", err)
	}
}
