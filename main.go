package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"kijiji-watcher/config"
	"kijiji-watcher/notify"
	"kijiji-watcher/scraper"
	"kijiji-watcher/scraper/kijiji"
	"kijiji-watcher/services"
	"kijiji-watcher/storage"
	"kijiji-watcher/utils"
)

var (
	envFile      string
	notifierPath string
	fetchMode    string
	noEnrich     bool
	debugMode    bool
)

var rootCmd = &cobra.Command{
	Use:   "kijiji-watcher [search-url]",
	Short: "Crawl a classifieds search and email the listings not seen before",
	Long: `Crawls every page of a classifieds search, compares the ads with the
local history file, and sends one HTML digest of the new ones. When the mail
cannot be sent the digest is written to the log directory instead.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVar(&envFile, "env", ".env", "Path to the .env file")
	rootCmd.Flags().StringVar(&notifierPath, "notifier", "", "Path to the mail settings file (YAML or JSON)")
	rootCmd.Flags().StringVar(&fetchMode, "fetch-mode", "", "Page loader: browser or http (overrides FETCH_MODE)")
	rootCmd.Flags().BoolVar(&noEnrich, "no-enrich", false, "Skip detail-page visits")
	rootCmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(envFile, notifierPath)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		cfg.SearchURL = args[0]
	}
	if fetchMode != "" {
		cfg.FetchMode = fetchMode
	}
	if noEnrich {
		cfg.Enrich = false
	}
	if debugMode {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := utils.NewLogger(cfg.Debug)
	logger.Info("=== Listing watcher starting ===")
	logger.Info("Config: store %s | fetch %s | max pages %d | enrich %t",
		cfg.StorePath, cfg.FetchMode, cfg.MaxPages, cfg.Enrich)

	lock, err := storage.AcquireLock(cfg.StorePath)
	if err != nil {
		if errors.Is(err, storage.ErrLocked) {
			logger.Error("Another run is using %s", cfg.StorePath)
		}
		return err
	}
	defer lock.Release()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher, closeFetcher, err := newFetcher(cfg, logger)
	if err != nil {
		return err
	}
	defer closeFetcher()

	extractor := kijiji.NewExtractor()
	retry := &utils.RetryConfig{
		MaxAttempts: cfg.MaxRetries,
		BaseDelay:   cfg.RetryBaseDelay,
		Logger:      logger,
	}

	var enricher *scraper.Enricher
	if cfg.Enrich {
		enricher = scraper.NewEnricher(fetcher, extractor, utils.NewRandomDelay(),
			cfg.EnrichMinWait, cfg.EnrichMaxWait, logger)
	}

	watcher := services.NewWatcher(services.WatcherDeps{
		Store:    storage.NewFileStore(cfg.StorePath, logger),
		Crawler:  scraper.NewCrawler(fetcher, extractor, retry, cfg.MaxPages, logger),
		Enricher: enricher,
		Composer: services.NewComposer(services.ComposerOptions{
			SubjectPrefix: cfg.SubjectPrefix,
			Heading:       cfg.Heading,
			Keywords:      cfg.HighlightKeywords,
		}, time.Now),
		Notifier: notify.NewNotifier(
			notify.NewSMTPSender(cfg.SMTP()),
			notify.NewFallbackWriter(cfg.LogDir, time.Now),
			logger,
		),
		Logger: logger,
	})

	report, err := watcher.Run(ctx, cfg.SearchURL)
	services.PrintReport(os.Stdout, report)
	if err != nil {
		logger.Error("Run finished with errors: %v", err)
		return err
	}
	logger.Info("Done. History saved to %s", cfg.StorePath)
	return nil
}

func newFetcher(cfg *config.Config, logger *utils.Logger) (scraper.PageFetcher, func(), error) {
	switch cfg.FetchMode {
	case config.FetchHTTP:
		f := scraper.NewHTTPFetcher(cfg.PageTimeout, cfg.PageInterval, logger)
		return f, func() { _ = f.Close() }, nil
	default:
		f, err := scraper.NewBrowserFetcher(scraper.BrowserOptions{
			ChromeBin:   cfg.ChromeBin,
			Headless:    cfg.Headless,
			PageTimeout: cfg.PageTimeout,
			Settle:      cfg.PageSettle,
			MinInterval: cfg.PageInterval,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("start browser: %w", err)
		}
		return f, func() { _ = f.Close() }, nil
	}
}
