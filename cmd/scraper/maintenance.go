package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"classifieds-scraper/internal/logging"
	"classifieds-scraper/internal/media"
	"classifieds-scraper/internal/tracking"
)

func newSyncCommand() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "sync-downloads",
		Short: "Track every listing that already has an image directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.DownloadsDir
			}
			logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			stores, err := openStores(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer stores.Close(logger)

			report, err := tracking.SyncFromDownloads(cmd.Context(), stores.tracker, dir)
			if err != nil {
				return err
			}
			for _, name := range report.Skipped {
				logger.Warn("Ignoring directory with a non-numeric id", zap.String("dir", name))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Directories found: %d\n", report.Found)
			fmt.Fprintf(out, "Already tracked:   %d\n", report.AlreadyTracked)
			fmt.Fprintf(out, "Newly added:       %d\n", len(report.Added))
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "downloads directory (defaults to DOWNLOADS_DIR)")
	return cmd
}

func newMergeCommand() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "merge-images",
		Short: "Copy all downloaded images into one flat directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if from == "" {
				cfg, err := loadConfig(cmd, nil)
				if err != nil {
					return err
				}
				from = cfg.DownloadsDir
			}

			report, err := media.Merge(cmd.Context(), from, to)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Folders scanned: %d\n", report.Folders)
			fmt.Fprintf(out, "Images copied:   %d\n", report.Copied)
			fmt.Fprintf(out, "Already existed: %d\n", report.Skipped)
			fmt.Fprintf(out, "Output location: %s\n", to)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "downloads directory (defaults to DOWNLOADS_DIR)")
	cmd.Flags().StringVar(&to, "to", "Tsawer", "destination directory")
	return cmd
}
