package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"classifieds-scraper/internal/api"
	"classifieds-scraper/internal/config"
	"classifieds-scraper/internal/crawler"
	"classifieds-scraper/internal/logging"
	"classifieds-scraper/internal/media"
	"classifieds-scraper/internal/metrics"
	"classifieds-scraper/internal/transform"
)

type scrapeOptions struct {
	category string
	maxPages int
	limit    int
	mode     string
}

func newScrapeCommand() *cobra.Command {
	opts := &scrapeOptions{}
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Fetch new listings of a category (default command)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(cmd, opts)
		},
	}
	bindScrapeFlags(cmd, opts)
	return cmd
}

func bindScrapeFlags(cmd *cobra.Command, opts *scrapeOptions) {
	cmd.Flags().StringVarP(&opts.category, "category", "c", "", "category slug (overrides CATEGORY)")
	cmd.Flags().IntVarP(&opts.maxPages, "max-pages", "p", 0, "search pages to crawl, 0 reads the page count (overrides MAX_PAGES)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "new listings per run, 0 for no cap (overrides LIMIT_PER_RUN)")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "", "MINI or ALL (overrides MODE)")
}

// loadConfig reads the environment and applies the flags that were set.
func loadConfig(cmd *cobra.Command, opts *scrapeOptions) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if opts == nil {
		return cfg, nil
	}
	flags := cmd.Flags()
	if flags.Changed("category") {
		cfg.Category = opts.category
	}
	if flags.Changed("max-pages") {
		cfg.MaxPages = opts.maxPages
	}
	if flags.Changed("limit") {
		cfg.LimitPerRun = opts.limit
	}
	if flags.Changed("mode") {
		cfg.Mode = opts.mode
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runScrape(cmd *cobra.Command, opts *scrapeOptions) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(
		zap.String("run_id", uuid.NewString()),
		zap.String("category", cfg.Category),
		zap.String("mode", cfg.Mode),
	)

	profile, err := transform.ProfileFor(cfg.ExtractionMode())
	if err != nil {
		return err
	}
	selector, err := crawler.SelectorFor(cfg.Selection)
	if err != nil {
		return err
	}
	policy, err := crawler.ParseEmptyPagePolicy(cfg.EmptyPagePolicy)
	if err != nil {
		return err
	}

	m := metrics.New()
	defer func() {
		if err := m.WriteFile(cfg.MetricsFile); err != nil {
			logger.Warn("Writing metrics failed", zap.Error(err))
		}
	}()

	stores, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.Close(logger)

	client := api.NewClient(api.ClientConfig{
		Endpoint:    cfg.APIURL,
		Headers:     cfg.Headers(),
		PageSize:    cfg.PageSize,
		Tries:       cfg.Tries,
		RetryDelay:  cfg.RetryDelay,
		Timeout:     cfg.RequestTimeout,
		DetailQuery: profile.DetailQuery,
	}, logger.Named("api"), m)

	coord := crawler.NewCoordinator(crawler.Config{
		WaitTime:     cfg.WaitTime,
		EmptyPage:    policy,
		Cap:          cfg.LimitPerRun,
		Selector:     selector,
		OutputDir:    cfg.OutputDir,
		OutputPrefix: cfg.OutputPrefix,
	}, client, stores.tracker, profile.Transformer, logger, m)

	if cfg.DownloadImages {
		coord.WithMedia(media.NewDownloader(media.DownloaderConfig{
			Dir:           cfg.DownloadsDir,
			Headers:       map[string]string{"User-Agent": cfg.UserAgent},
			UserAgent:     cfg.UserAgent,
			Interval:      cfg.WaitTime,
			Timeout:       cfg.RequestTimeout,
			RespectRobots: cfg.RespectRobots,
		}, logger.Named("media"), m))
	}
	if stores.mirror != nil {
		coord.WithMirror(stores.mirror)
	}

	logger.Info("Starting scrape",
		zap.Int("max_pages", cfg.MaxPages),
		zap.Int("limit_per_run", cfg.LimitPerRun),
		zap.String("selection", cfg.Selection),
		zap.String("empty_page_policy", policy.String()),
	)
	res, err := coord.Run(ctx, cfg.Category, cfg.MaxPages)
	switch {
	case errors.Is(err, crawler.ErrNothingToProcess):
		fmt.Fprintln(cmd.OutOrStdout(), "No new data to process.")
		return nil
	case err != nil:
		logger.Error("Scrape failed", zap.Error(err))
		return err
	}

	logger.Info("Scrape finished",
		zap.String("file", res.OutputFile),
		zap.Int("discovered", res.Discovered),
		zap.Int("batch", res.Batch),
		zap.Int("fetched", res.Fetched),
		zap.Int("written", res.Written),
		zap.Int("committed", res.Committed),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "Scraping completed. Data saved to: %s\n", res.OutputFile)
	return nil
}
