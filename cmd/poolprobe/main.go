// poolprobe drives a connection pool against a real backend and reports
// how it behaved.
//
// Usage:
//
//	poolprobe [flags]
//
// Flags:
//
//	-config string
//	    Path to configuration file (default "connpool.toml")
//	-kind string
//	    Target kind: tcp, redis or mysql (overrides config)
//	-addr string
//	    Target address (overrides config)
//	-workers int
//	    Number of concurrent borrowers (default 4)
//	-duration duration
//	    How long to run (default 10s)
//	-hold duration
//	    How long each borrower keeps a connection (default 5ms)
//	-metrics string
//	    Serve Prometheus metrics on this address while running
//	-json
//	    Print the final statistics as JSON
//	-write-config
//	    Write the effective configuration to -config and exit
//	-v
//	    Enable verbose logging
//	-version
//	    Print version and exit
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/go-i2p/connpool/lib/config"
	"github.com/go-i2p/connpool/lib/metrics"
	"github.com/go-i2p/connpool/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("poolprobe", flag.ContinueOnError)
	configPath := fs.String("config", "connpool.toml", "Path to configuration file")
	kind := fs.String("kind", "", "Target kind: tcp, redis or mysql (overrides config)")
	addr := fs.String("addr", "", "Target address (overrides config)")
	workers := fs.Int("workers", 4, "Number of concurrent borrowers")
	duration := fs.Duration("duration", 10*time.Second, "How long to run")
	hold := fs.Duration("hold", 5*time.Millisecond, "How long each borrower keeps a connection")
	metricsAddr := fs.String("metrics", "", "Serve Prometheus metrics on this address while running")
	asJSON := fs.Bool("json", false, "Print the final statistics as JSON")
	writeConfig := fs.Bool("write-config", false, "Write the effective configuration to -config and exit")
	verbose := fs.Bool("v", false, "Enable verbose logging")
	showVersion := fs.Bool("version", false, "Print version and exit")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "poolprobe - exercise a connection pool against a backend\n\n")
		fmt.Fprintf(fs.Output(), "Usage:\n  poolprobe [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *showVersion {
		fmt.Fprintf(stdout, "poolprobe version %s\n", version.Full())
		return 0
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return 1
	}

	// Command-line overrides
	if *kind != "" {
		cfg.Target.Kind = *kind
	}
	if *addr != "" {
		cfg.Target.Address = *addr
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		return 1
	}

	if *writeConfig {
		if err := config.SaveConfig(cfg, *configPath); err != nil {
			logger.Error("failed to write config", "error", err)
			return 1
		}
		logger.Info("configuration written", "path", *configPath)
		return 0
	}

	if *workers < 1 {
		logger.Error("workers must be at least 1", "workers", *workers)
		return 1
	}

	// Create a context that is cancelled on SIGINT/SIGTERM or after -duration
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	metrics.RecordStartTime()
	if *metricsAddr != "" {
		srv := serveMetrics(*metricsAddr, logger)
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	logger.Info("poolprobe started",
		"kind", cfg.Target.Kind,
		"target", targetName(cfg),
		"workers", *workers,
		"duration", *duration,
		"version", version.Version)

	report, err := probeTarget(ctx, logger, cfg, load{workers: *workers, hold: *hold})
	if err != nil {
		logger.Error("probe failed", "error", err)
		return 1
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			logger.Error("failed to encode report", "error", err)
			return 1
		}
	} else {
		printReport(stdout, report)
	}

	logger.Info("poolprobe stopped")
	return 0
}

// serveMetrics exposes the default registry until the returned server is
// shut down.
func serveMetrics(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()
	return srv
}

func targetName(cfg *config.Config) string {
	if cfg.Target.Kind == config.KindMySQL {
		return "mysql"
	}
	return cfg.Target.Address
}

func printReport(w io.Writer, r report) {
	s := r.Stats
	fmt.Fprintf(w, "Borrows:      %d ok, %d failed (%d timeouts)\n", r.Borrowed, r.Failed, r.Timeouts)
	fmt.Fprintf(w, "Acquire:      %d calls, %d handed off, mean wait %v\n", s.AcquireCount, s.HandoffCount, r.MeanAcquire)
	fmt.Fprintf(w, "Connections:  %d open, %d idle, %d in use (max %d)\n", s.NumOpen, s.NumIdle, s.NumInUse, s.MaxOpen)
	fmt.Fprintf(w, "Lifecycle:    %d created, %d create failures, %d destroyed, %d evicted\n",
		s.CreateCount, s.CreateFailed, s.DestroyCount, s.EvictionCount)
	fmt.Fprintf(w, "Validation:   %d failures\n", s.ValidationFails)
	fmt.Fprintf(w, "Generation:   %d\n", s.Generation)
	kinds := make([]string, 0, len(r.Errors))
	for kind := range r.Errors {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		fmt.Fprintf(w, "Error %-22s %d\n", kind+":", r.Errors[kind])
	}
	if r.LastError != nil {
		fmt.Fprintf(w, "Last error:   [code %d] %s\n", r.LastError.Code, r.LastError.Message)
	}
}
