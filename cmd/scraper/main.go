package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &scrapeOptions{}
	root := &cobra.Command{
		Use:   "scraper",
		Short: "Scrape classified listings into CSV files",
		Long: `Scrapes one category of the OuedKniss classifieds API: new listings are
fetched, written to a timestamped CSV file and then recorded in the tracking
store so later runs skip them. Settings come from the environment or .env.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(cmd, opts)
		},
	}
	bindScrapeFlags(root, opts)

	root.AddCommand(newScrapeCommand())
	root.AddCommand(newSyncCommand())
	root.AddCommand(newMergeCommand())
	return root
}
