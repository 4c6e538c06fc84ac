package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aluiziolira/go-catalog-export/assemble"
	"github.com/aluiziolira/go-catalog-export/config"
	"github.com/aluiziolira/go-catalog-export/models"
	"github.com/aluiziolira/go-catalog-export/pipeline"
	"github.com/aluiziolira/go-catalog-export/scraper"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.DefaultConfig()

	configPath := flag.String("config", "", "Optional YAML config file")
	startURL := flag.String("start-url", cfg.StartURL, "Catalog listing URL to start from")
	maxPages := flag.Int("pages", cfg.MaxPages, "Maximum listing pages to crawl (0 = no limit)")
	withDetails := flag.Bool("details", cfg.WithDetails, "Fetch each product's detail page")
	outputFile := flag.String("output", cfg.OutputFile, "Output file; extension selects csv, xlsx, or json")
	timeoutSec := flag.Int("timeout", int(cfg.Timeout/time.Second), "Per-request timeout (seconds)")
	maxRetries := flag.Int("max-retries", cfg.MaxRetries, "Attempts per URL before giving up")
	delayMs := flag.Int("delay", int(cfg.Delay/time.Millisecond), "Politeness delay between requests (milliseconds)")
	respectRobots := flag.Bool("respect-robots", cfg.RespectRobotsTxt, "Respect robots.txt directives")
	metricsAddr := flag.String("metrics-addr", cfg.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	flag.Parse()

	if *configPath != "" {
		if err := cfg.LoadFile(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "config file: %v\n", err)
			os.Exit(1)
		}
	}
	if err := applyEnv(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Explicit flags win over both file and environment.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "start-url":
			cfg.StartURL = *startURL
		case "pages":
			cfg.MaxPages = *maxPages
		case "details":
			cfg.WithDetails = *withDetails
		case "output":
			cfg.OutputFile = *outputFile
		case "timeout":
			cfg.Timeout = time.Duration(*timeoutSec) * time.Second
		case "max-retries":
			cfg.MaxRetries = *maxRetries
		case "delay":
			cfg.Delay = time.Duration(*delayMs) * time.Millisecond
		case "respect-robots":
			cfg.RespectRobotsTxt = *respectRobots
		case "metrics-addr":
			cfg.MetricsAddr = *metricsAddr
		case "v":
			cfg.Verbose = *verbose
		}
	})

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("starting crawl",
		slog.String("start_url", cfg.StartURL),
		slog.Int("pages", cfg.MaxPages),
		slog.Bool("details", cfg.WithDetails),
	)

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, finishing current page")
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" && s.Metrics != nil {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	result, err := s.Run(ctx)
	if err != nil {
		slog.Error("crawl failed",
			slog.Any("error", err),
			slog.Int("partial_records", len(result.Records)),
		)
		shutdownMetrics(metricsServer)
		os.Exit(1)
	}

	table, err := assemble.Assemble(result.Records)
	if errors.Is(err, assemble.ErrNoData) {
		slog.Info("no data collected, skipping export")
		fmt.Println("No data collected.")
		shutdownMetrics(metricsServer)
		return
	}
	if err != nil {
		slog.Error("assembling results", slog.Any("error", err))
		shutdownMetrics(metricsServer)
		os.Exit(1)
	}

	writer, err := pipeline.NewWriter(cfg.OutputFile)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		shutdownMetrics(metricsServer)
		os.Exit(1)
	}
	if err := writer.Write(table); err != nil {
		slog.Error("writing output", slog.Any("error", err))
		writer.Close()
		shutdownMetrics(metricsServer)
		os.Exit(1)
	}
	if err := writer.Validate(); err != nil {
		slog.Error("output validation failed", slog.Any("error", err))
		writer.Close()
		shutdownMetrics(metricsServer)
		os.Exit(1)
	}
	if err := writer.Close(); err != nil {
		slog.Error("close writer", slog.Any("error", err))
		shutdownMetrics(metricsServer)
		os.Exit(1)
	}

	shutdownMetrics(metricsServer)
	printSummary(result, table, cfg.OutputFile)
}

func applyEnv(cfg *config.Config) error {
	if value, ok := config.EnvString("SCRAPER_START_URL"); ok {
		cfg.StartURL = value
	}
	if value, ok, err := config.EnvInt("SCRAPER_PAGES"); err != nil {
		return fmt.Errorf("invalid SCRAPER_PAGES: %w", err)
	} else if ok {
		cfg.MaxPages = value
	}
	if value, ok, err := config.EnvBool("SCRAPER_DETAILS"); err != nil {
		return fmt.Errorf("invalid SCRAPER_DETAILS: %w", err)
	} else if ok {
		cfg.WithDetails = value
	}
	if value, ok := config.EnvString("SCRAPER_OUTPUT"); ok {
		cfg.OutputFile = value
	}
	if value, ok := config.EnvString("SCRAPER_METRICS_ADDR"); ok {
		cfg.MetricsAddr = value
	}
	return nil
}

func shutdownMetrics(server *http.Server) {
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics server shutdown failed", slog.Any("error", err))
	}
}

func printSummary(result *models.CrawlResult, table *assemble.Table, outputFile string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Crawl complete")

	duration := result.EndTime.Sub(result.StartTime)
	successRate := 0.0
	if result.RequestCount > 0 {
		successRate = float64(result.RequestCount-result.ErrorCount) / float64(result.RequestCount) * 100
	}

	fmt.Printf("  Pages:          %d\n", result.PageCount)
	fmt.Printf("  Records:        %d (%d before dedup)\n", len(table.Records), len(result.Records))
	fmt.Printf("  Columns:        %d\n", len(table.Columns))
	fmt.Printf("  Requests:       %d\n", result.RequestCount)
	fmt.Printf("  Success rate:   %.2f%%\n", successRate)
	fmt.Printf("  Retries:        %d\n", result.RetryCount)
	fmt.Printf("  Detail errors:  %d\n", result.DetailErrors)
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:    %v\n", result.ErrorsByType)
	}
	fmt.Printf("  Duration:       %v\n", duration)
	fmt.Println(separator)
	fmt.Printf("Saved %d records -> %s\n", len(table.Records), outputFile)
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
