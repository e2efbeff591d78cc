package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/portfolio-cli/internal/report"
)

var (
	scrapeSave   bool
	scrapeFormat string
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Log in and take a portfolio snapshot",
	Long:  "Logs in to the portal (reusing a saved session when possible), scrapes the holdings pages, prints the snapshot and optionally stores it.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		format, err := report.ParseFormat(scrapeFormat)
		if err != nil {
			return err
		}
		if format == report.FormatXLSX {
			return eris.New("scrape: use the export command for xlsx output")
		}

		scraper, err := initScraper()
		if err != nil {
			return err
		}

		res, err := scraper.Scrape(ctx, credentials())
		if err != nil {
			return err
		}
		for _, w := range res.Warnings {
			zap.L().Warn("scrape: row skipped", zap.Stringer("warning", w))
		}

		if scrapeSave {
			repo, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer repo.Close() //nolint:errcheck

			if err := repo.Save(ctx, res.Portfolio); err != nil {
				return err
			}
		}

		return report.Render(cmd.OutOrStdout(), report.Summarize(res.Portfolio), format)
	},
}

func init() {
	scrapeCmd.Flags().BoolVar(&scrapeSave, "save", false, "store the snapshot in the configured database")
	scrapeCmd.Flags().StringVar(&scrapeFormat, "format", "table", "output format: table, json or yaml")
	rootCmd.AddCommand(scrapeCmd)
}
