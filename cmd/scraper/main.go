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
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/pipeline"
	"github.com/aluiziolira/go-scrape-catalog/scraper"
)

func main() {
	os.Exit(run())
}

func run() int {
	// A missing .env file is fine; flags and the process environment still apply.
	_ = godotenv.Load()

	cfg, err := parseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}

	logger, level, logCloser, err := newLogger(cfg.Verbose, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	defer logCloser.Close()
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		return 1
	}

	slog.Info("starting scrape",
		slog.String("base_url", cfg.BaseURL),
		slog.Int("max_pages", cfg.MaxPages),
		slog.Duration("delay", cfg.Delay),
		slog.String("output", cfg.OutputFile),
	)

	w, err := scraper.New(cfg)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, finishing the current page")
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" && w.Metrics != nil {
		metricsServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(w.Metrics.Registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	result := w.Run(ctx, func() (pipeline.OutputWriter, error) {
		return pipeline.NewWriter(cfg.OutputFormat, cfg.OutputFile)
	})

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(result, cfg.OutputFile)

	if result.PersistErr != nil {
		return 1
	}
	return 0
}

// parseConfig layers defaults, SCRAPER_* environment variables and flags, in that order.
func parseConfig(fs *flag.FlagSet, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if value, ok := config.EnvString("SCRAPER_BASE_URL"); ok {
		cfg.BaseURL = value
	}
	if value, ok, err := config.EnvInt("SCRAPER_PAGES"); err != nil {
		return nil, fmt.Errorf("invalid SCRAPER_PAGES: %w", err)
	} else if ok {
		cfg.MaxPages = value
	}
	if value, ok, err := config.EnvDuration("SCRAPER_DELAY"); err != nil {
		return nil, fmt.Errorf("invalid SCRAPER_DELAY: %w", err)
	} else if ok {
		cfg.Delay = value
	}
	if value, ok := config.EnvString("SCRAPER_OUTPUT"); ok {
		cfg.OutputFile = value
	}
	if value, ok := config.EnvString("SCRAPER_LOG_FILE"); ok {
		cfg.LogFile = value
	}
	if value, ok := config.EnvString("SCRAPER_METRICS_ADDR"); ok {
		cfg.MetricsAddr = value
	}

	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "Seed catalog URL")
	fs.IntVar(&cfg.MaxPages, "pages", cfg.MaxPages, "Maximum catalog pages to walk")
	fs.DurationVar(&cfg.Delay, "delay", cfg.Delay, "Pause after each successful page fetch")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "HTTP request timeout")
	fs.BoolVar(&cfg.RespectRobotsTxt, "respect-robots", cfg.RespectRobotsTxt, "Respect robots.txt directives")
	fs.StringVar(&cfg.OutputFile, "output", cfg.OutputFile, "Output file path")
	fs.StringVar(&cfg.OutputFormat, "format", cfg.OutputFormat, "Output format: csv, json, or dual")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Log file path (empty disables file logging)")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Enable verbose logging")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.OutputFormat = strings.ToLower(cfg.OutputFormat)
	return cfg, nil
}

func printSummary(result *models.WalkResult, outputFile string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")

	fmt.Printf("  Records:       %d\n", len(result.Records))
	fmt.Printf("  Pages:         %d\n", len(result.Pages))
	fmt.Printf("  Stopped:       %s\n", result.StopReason)
	if result.FetchErr != nil {
		fmt.Printf("  Fetch error:   %v\n", result.FetchErr)
	}
	fmt.Printf("  Skipped items: %d\n", result.ExtractionFailures)
	if len(result.Degradations) > 0 {
		fmt.Printf("  Placeholders:  %v\n", result.Degradations)
	}
	fmt.Printf("  Duration:      %v\n", result.Duration().Round(time.Millisecond))
	if result.PersistErr != nil {
		fmt.Printf("  Output error:  %v\n", result.PersistErr)
	} else {
		fmt.Printf("  Output file:   %s\n", outputFile)
	}

	n := len(result.Records)
	if n > 5 {
		n = 5
	}
	for _, r := range result.Records[:n] {
		fmt.Println(separator)
		fmt.Printf("  Title:         %s\n", r.Title)
		fmt.Printf("  Price:         %s\n", r.Price)
		fmt.Printf("  Rating:        %s/5\n", r.Rating)
		fmt.Printf("  Availability:  %s\n", r.Availability)
		fmt.Printf("  URL:           %s\n", r.URL)
	}
	fmt.Println(separator)
}
