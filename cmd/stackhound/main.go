package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stackhound/stackhound/internal/browser"
	"github.com/stackhound/stackhound/internal/classify"
	"github.com/stackhound/stackhound/internal/config"
	"github.com/stackhound/stackhound/internal/engine"
	"github.com/stackhound/stackhound/internal/fetch"
	"github.com/stackhound/stackhound/internal/mitigate"
	"github.com/stackhound/stackhound/internal/observability"
	"github.com/stackhound/stackhound/internal/output"
	"github.com/stackhound/stackhound/internal/proxy"
)

var (
	cfgFile     string
	verbose     bool
	searchTerms []string
	startURLs   []string
	maxItems    int
	concurrency int
	proxyTier   string
	country     string
	fetcherMode string
	outputPath  string
	outputType  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "stackhound",
		Short: "stackhound is a targeted bullion storefront crawler",
		Long: `stackhound crawls a precious-metals storefront from search terms or
start URLs, routes each page by its URL shape, and extracts structured
product records with layered selector fallbacks.`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(crawlCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func crawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl the storefront and emit product records",
		Long: `Crawl from --search terms and/or --url start pages. With neither, the
configured default search term seeds the crawl. The crawl stops once
--max-items records are emitted or the frontier drains.`,
		RunE: runCrawl,
	}

	cmd.Flags().StringSliceVarP(&searchTerms, "search", "s", nil, "search term to seed from (repeatable)")
	cmd.Flags().StringSliceVarP(&startURLs, "url", "u", nil, "start URL to seed from (repeatable)")
	cmd.Flags().IntVarP(&maxItems, "max-items", "m", 0, "maximum product records to emit (0 = config default)")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "n", 0, "worker count (0 = config default)")
	cmd.Flags().StringVar(&proxyTier, "proxy-tier", "", "starting proxy tier: datacenter, residential, unblocker")
	cmd.Flags().StringVar(&country, "country", "", "proxy exit country code")
	cmd.Flags().StringVar(&fetcherMode, "fetcher", "", "fetch mode: http, browser, auto")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file path")
	cmd.Flags().StringVarP(&outputType, "format", "f", "", "output format: jsonl, json, mongodb")

	return cmd
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg)
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger := newLogger(os.Stderr, &cfg.Logging, verbose)

	sink, err := output.New(&cfg.Output, logger)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	fetcher, err := buildFetcher(cfg, logger)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}

	eng := engine.New(cfg, classify.New(&cfg.Site), fetcher, sink, logger)
	if err := eng.Seed(searchTerms, startURLs); err != nil {
		return fmt.Errorf("seed crawl: %w", err)
	}

	if cfg.Metrics.Enabled {
		exporter := observability.NewExporter(eng.Stats(), eng.QueueDepth, logger)
		exporter.StartServer(cfg.Metrics.Port, cfg.Metrics.Path)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	logger.Info("starting crawl",
		"search", searchTerms,
		"urls", startURLs,
		"max_items", cfg.Engine.MaxItems,
		"fetcher", cfg.Fetcher.Mode,
		"output", cfg.Output.Type,
	)

	start := time.Now()
	if err := eng.Run(ctx); err != nil {
		sink.Close()
		return fmt.Errorf("crawl: %w", err)
	}
	if err := sink.Close(); err != nil {
		logger.Error("output close error", "error", err)
	}

	elapsed := time.Since(start)
	stats := eng.Stats()

	fmt.Printf("\nCrawl complete in %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("  Products:  %d emitted\n", stats.ProductsEmitted.Load())
	fmt.Printf("  Requests:  %d attempted, %d failed, %d retried\n",
		stats.RequestsAttempted.Load(), stats.RequestsFailed.Load(), stats.RequestsRetried.Load())
	fmt.Printf("  Blocks:    %d detected\n", stats.PagesBlocked.Load())
	if cfg.Output.Type != "mongodb" {
		fmt.Printf("  Output:    %s\n", cfg.Output.Path)
	}
	return nil
}

// buildFetcher assembles the fetch chain for the configured mode.
func buildFetcher(cfg *config.Config, logger *slog.Logger) (fetch.Fetcher, error) {
	proxies, err := proxy.NewManager(&cfg.Proxy, logger)
	if err != nil {
		return nil, err
	}

	newHTTP := func() *fetch.HTTPFetcher {
		return fetch.NewHTTPFetcher(&cfg.Fetcher, cfg.Engine.HandlerTimeout, proxies, logger)
	}
	newBrowser := func() *fetch.BrowserFetcher {
		b := browser.New(&cfg.Browser, proxies, logger)
		m := mitigate.New(&cfg.Mitigation, logger)
		return fetch.NewBrowserFetcher(b, m, logger)
	}

	switch strings.ToLower(cfg.Fetcher.Mode) {
	case "http":
		return newHTTP(), nil
	case "browser":
		return newBrowser(), nil
	case "auto":
		return fetch.NewAutoFetcher(newHTTP(), newBrowser(), logger), nil
	default:
		return nil, fmt.Errorf("unknown fetcher mode %q", cfg.Fetcher.Mode)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("stackhound %s\n", config.Version)
		},
	}
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Site:\n")
			fmt.Printf("  Host:              %s\n", cfg.Site.Host)
			fmt.Printf("  Search Template:   %s\n", cfg.Site.SearchURLTemplate)
			fmt.Printf("  Default Term:      %s\n", cfg.Site.DefaultSearchTerm)
			fmt.Printf("\nEngine:\n")
			fmt.Printf("  Concurrency:       %d\n", cfg.Engine.Concurrency)
			fmt.Printf("  Max Items:         %d\n", cfg.Engine.MaxItems)
			fmt.Printf("  Max Attempts:      %d\n", cfg.Engine.MaxAttempts)
			fmt.Printf("  Handler Timeout:   %s\n", cfg.Engine.HandlerTimeout)
			fmt.Printf("  Politeness Delay:  %s\n", cfg.Engine.PolitenessDelay)
			fmt.Printf("\nFetcher:\n")
			fmt.Printf("  Mode:              %s\n", cfg.Fetcher.Mode)
			fmt.Printf("  Follow Redirects:  %v\n", cfg.Fetcher.FollowRedirects)
			fmt.Printf("  User Agents:       %d configured\n", len(cfg.Fetcher.UserAgents))
			fmt.Printf("\nProxy:\n")
			fmt.Printf("  Default Tier:      %s\n", cfg.Proxy.DefaultTier)
			fmt.Printf("  Country:           %s\n", valueOr(cfg.Proxy.Country, "(any)"))
			fmt.Printf("\nOutput:\n")
			fmt.Printf("  Type:              %s\n", cfg.Output.Type)
			fmt.Printf("  Path:              %s\n", cfg.Output.Path)
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  Port:              %d\n", cfg.Metrics.Port)
			return nil
		},
	}
}

// newLogger builds the handler from config; --verbose forces debug.
func newLogger(w io.Writer, cfg *config.LoggingConfig, verbose bool) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func applyCLIOverrides(cfg *config.Config) {
	if maxItems > 0 {
		cfg.Engine.MaxItems = maxItems
	}
	if concurrency > 0 {
		cfg.Engine.Concurrency = concurrency
	}
	if proxyTier != "" {
		cfg.Proxy.DefaultTier = strings.ToLower(proxyTier)
	}
	if country != "" {
		cfg.Proxy.Country = country
	}
	if fetcherMode != "" {
		cfg.Fetcher.Mode = strings.ToLower(fetcherMode)
	}
	if outputPath != "" {
		cfg.Output.Path = outputPath
	}
	if outputType != "" {
		cfg.Output.Type = strings.ToLower(outputType)
	}
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
