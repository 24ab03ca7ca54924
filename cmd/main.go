package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/proxy-batch-checker/internal/api"
	"github.com/proxy-batch-checker/internal/checker"
	"github.com/proxy-batch-checker/internal/config"
	"github.com/proxy-batch-checker/internal/descriptor"
	"github.com/proxy-batch-checker/internal/metrics"
	"github.com/proxy-batch-checker/internal/pipeline"
	"github.com/proxy-batch-checker/internal/report"
	"github.com/proxy-batch-checker/internal/snapshot"
	"github.com/proxy-batch-checker/internal/source"
	"github.com/proxy-batch-checker/internal/storage"
	"github.com/proxy-batch-checker/internal/types"
	log "github.com/sirupsen/logrus"
)

const version = "1.0.0"

type options struct {
	configPath string
	mode       string
	scheme     string
	workers    int
	timeoutMs  int
	target     string
	format     string
	in         string
	out        string
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}

	fs := flag.NewFlagSet("proxy-batch-checker", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "config.json", "path to the JSON config file")
	fs.StringVar(&opts.scheme, "scheme", "", "probe scheme: socks5 or http")
	fs.IntVar(&opts.workers, "workers", 0, "maximum probes in flight")
	fs.IntVar(&opts.timeoutMs, "timeout", 0, "per-probe timeout in milliseconds")
	fs.StringVar(&opts.target, "target", "", "echo URL fetched through each proxy")
	fs.StringVar(&opts.format, "format", string(descriptor.FormatSOCKS5), "output format for convert")
	fs.StringVar(&opts.in, "in", "", "input list, one descriptor per line")
	fs.StringVar(&opts.out, "out", "", "output file")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: proxy-batch-checker [flags] convert|check|serve\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return nil, fmt.Errorf("expected exactly one mode, got %d", fs.NArg())
	}
	opts.mode = fs.Arg(0)

	return opts, nil
}

// loadConfig reads the config file, or defaults when it is missing, and
// applies command-line overrides.
func loadConfig(opts *options) (*config.Config, error) {
	cfg, found, err := config.LoadOrDefault(opts.configPath)
	if err != nil {
		return nil, err
	}
	if !found {
		log.Debugf("Config %s not found, using defaults", opts.configPath)
	}

	if opts.scheme != "" {
		cfg.Checker.Scheme = opts.scheme
	}
	if opts.workers > 0 {
		cfg.Checker.Workers = opts.workers
	}
	if opts.timeoutMs > 0 {
		cfg.Checker.TimeoutMs = opts.timeoutMs
	}
	if opts.target != "" {
		cfg.Checker.TestURL = opts.target
	}
	if opts.in != "" {
		cfg.Files.Input = opts.in
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func setupLogging(cfg config.LoggingConfig, forceJSON bool) {
	if forceJSON || cfg.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	if level, err := log.ParseLevel(cfg.Level); err == nil {
		log.SetLevel(level)
	} else {
		log.Warnf("Unknown log level %q, using info", cfg.Level)
		log.SetLevel(log.InfoLevel)
	}
}

func main() {
	opts, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	setupLogging(cfg.Logging, opts.mode == "serve")

	switch opts.mode {
	case "convert":
		out := opts.out
		if out == "" {
			out = cfg.Files.ConvertOutput
		}
		err = runConvert(cfg, opts.format, out, os.Stdout)
	case "check":
		out := opts.out
		if out == "" {
			out = cfg.Files.WorkingOutput
		}
		err = runCheck(context.Background(), cfg, nil, out, os.Stdout)
	case "serve":
		err = runServe(cfg)
	default:
		err = fmt.Errorf("unknown mode %q: use convert, check or serve", opts.mode)
	}

	if err != nil {
		log.Fatal(err)
	}
}

// runConvert renders every parseable input line in format and writes them to out.
func runConvert(cfg *config.Config, format, out string, stdout io.Writer) error {
	f, err := descriptor.ParseFormat(format)
	if err != nil {
		return err
	}

	lines, err := source.LoadFile(cfg.Files.Input)
	if err != nil {
		return err
	}

	converted, err := descriptor.ConvertAll(lines, f)
	if err != nil {
		return err
	}

	if err := storage.WriteLines(out, converted); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}

	if skipped := len(lines) - len(converted); skipped > 0 {
		log.Warnf("Skipped %d malformed lines", skipped)
	}
	fmt.Fprintf(stdout, "Converted %d proxies to %s, saved to %s\n", len(converted), f, out)
	return nil
}

// runCheck probes every input line, printing each result as it lands, and
// writes the working proxies to out. A nil transport probes over the network.
func runCheck(ctx context.Context, cfg *config.Config, transport checker.Transport, out string, stdout io.Writer) error {
	if err := cfg.RequireScheme(); err != nil {
		return err
	}

	lines, err := source.LoadFile(cfg.Files.Input)
	if err != nil {
		return err
	}

	reportLog, err := storage.OpenLineLog(cfg.Files.ReportLog)
	if err != nil {
		return err
	}
	defer reportLog.Close()

	progress := func(r types.ProbeResult) {
		line := report.FormatLine(r)
		fmt.Fprintln(stdout, line)
		if err := reportLog.Append(line); err != nil {
			log.Warnf("Report log: %v", err)
		}
	}

	chk := checker.NewChecker(cfg.Checker, nil, transport)
	runner := pipeline.NewRunner(nil, chk, nil, nil)

	start := time.Now()
	batch := runner.Check(ctx, lines, cfg.Checker.Scheme, progress)

	fmt.Fprintf(stdout, "%s in %v\n", batch.Summary(), time.Since(start).Round(time.Millisecond))

	working := batch.WorkingProxies()
	if err := storage.WriteLines(out, working); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Fprintf(stdout, "Saved %d working proxies to %s\n", len(working), out)
	return nil
}

func runServe(cfg *config.Config) error {
	log.Infof("Starting proxy batch checker v%s", version)
	log.Infof("GOMAXPROCS is %d", runtime.GOMAXPROCS(0))

	var metricsCollector *metrics.Collector
	if cfg.Metrics.Enabled {
		metricsCollector = metrics.NewCollector(cfg.Metrics.Namespace, prometheus.DefaultRegisterer)
	}

	store, err := storage.NewStorage(cfg.Storage.Type, cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	defer store.Close()

	snapshotMgr := snapshot.NewManager(store, cfg.Storage.PersistIntervalSeconds)
	defer snapshotMgr.Close()

	if err := snapshotMgr.LoadFromStorage(); err != nil {
		log.Warnf("Failed to load existing snapshot: %v (starting fresh)", err)
	}
	metricsCollector.SetWorkingProxies(len(snapshotMgr.GetAll()))

	var fetcher *source.Fetcher
	if len(cfg.Sources.Lists) > 0 {
		fetcher = source.NewFetcher(cfg.Sources, metricsCollector)
	}
	chk := checker.NewChecker(cfg.Checker, metricsCollector, nil)
	runner := pipeline.NewRunner(fetcher, chk, snapshotMgr, metricsCollector)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if fetcher != nil && cfg.Sources.IntervalSeconds > 0 {
		if err := cfg.RequireScheme(); err != nil {
			return fmt.Errorf("periodic refresh: %w", err)
		}
		go runner.Loop(ctx, cfg.Checker.Scheme, time.Duration(cfg.Sources.IntervalSeconds)*time.Second)
	} else {
		log.Info("Periodic source refresh is disabled")
	}

	apiServer := api.NewServer(cfg, snapshotMgr, metricsCollector, runner)
	serveErr := make(chan error, 1)
	go func() {
		if err := apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Infof("Received %v, shutting down gracefully...", sig)
	case err := <-serveErr:
		return fmt.Errorf("API server failed: %w", err)
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Errorf("API server shutdown error: %v", err)
	}

	log.Info("Shutdown complete")
	return nil
}
