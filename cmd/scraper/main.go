package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/go-scrape-apps/batch"
	"github.com/aluiziolira/go-scrape-apps/config"
	"github.com/aluiziolira/go-scrape-apps/models"
	"github.com/aluiziolira/go-scrape-apps/scraper"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(&options{}).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

type options struct {
	configPath  string
	verbose     bool
	throttle    int
	metricsAddr string
	baseURL     string
	testMode    bool
	omitReviews bool
	format      string
	target      string
}

func newRootCmd(opts *options) *cobra.Command {
	root := &cobra.Command{
		Use:          "scraper",
		Short:        "Resumable, rate-limited app marketplace scraper",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "YAML config file overlaying the defaults")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	flags.IntVarP(&opts.throttle, "throttle", "t", 0, "Pause between review pages, in throttle units (default 2)")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
	flags.StringVar(&opts.baseURL, "base-url", "", "Marketplace base URL")

	root.AddCommand(
		newTermsCmd(opts),
		newLinksCmd(opts),
		newAppsCmd(opts),
		newResetCmd(opts),
	)
	return root
}

// load resolves the configuration: defaults, then the config file, then the
// environment, then flags the user actually set.
func (o *options) load(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if o.configPath != "" {
		loaded, err := config.LoadFile(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("verbose") {
		cfg.Verbose = o.verbose
	}
	if flags.Changed("throttle") {
		cfg.PageThrottle = o.throttle
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = o.metricsAddr
	}
	if flags.Changed("base-url") {
		cfg.BaseURL = o.baseURL
	}
	if flags.Changed("test-mode") {
		cfg.TestMode = o.testMode
	}
	if flags.Changed("omit-reviews") {
		cfg.OmitReviews = o.omitReviews
	}
	if flags.Changed("format") {
		cfg.OutputFormat = strings.ToLower(o.format)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// session holds what every batch command needs.
type session struct {
	cfg          *config.Config
	logger       *slog.Logger
	metrics      *scraper.Metrics
	batchMetrics *batch.Metrics
	server       *http.Server
}

func setup(cmd *cobra.Command, opts *options) (*session, error) {
	cfg, err := opts.load(cmd)
	if err != nil {
		return nil, err
	}

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	metrics := scraper.NewMetrics()
	sess := &session{
		cfg:          cfg,
		logger:       logger,
		metrics:      metrics,
		batchMetrics: batch.NewMetrics(metrics.Registry),
	}
	sess.server = serveMetrics(cfg.MetricsAddr, metrics.Registry)
	return sess, nil
}

func (s *session) close() {
	if s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics server shutdown failed", slog.Any("error", err))
	}
}

func (s *session) driver(name string) *batch.Driver {
	return &batch.Driver{
		Name:       name,
		Checkpoint: batch.NewFileCheckpoint(s.cfg.StatePath(name + ".toml")),
		ErrorLog:   batch.NewFileErrorLog(s.cfg.LogPath(name + ".log")),
		Throttle:   batch.ThrottleFromConfig(s.cfg),
		Metrics:    s.batchMetrics,
		Logger:     s.logger,
	}
}

// run drives handler over items and prints the report. An interrupted run is
// not an error: its checkpoint already covers every finished item.
func (s *session) run(ctx context.Context, name string, items []string, handler batch.Handler) (*models.RunReport, error) {
	report, err := s.driver(name).Run(ctx, items, handler)
	if report != nil {
		batch.PrintReport(os.Stdout, report)
	}
	if errors.Is(err, context.Canceled) {
		s.logger.Info("run interrupted, progress saved", slog.String("run", name))
		return report, nil
	}
	return report, err
}

func serveMetrics(addr string, registry *prometheus.Registry) *http.Server {
	if addr == "" {
		return nil
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))
	return server
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
