package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/portfolio-cli/internal/report"
)

var (
	historyFrom   string
	historyTo     string
	historyFormat string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored snapshots in a date range",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		format, err := report.ParseFormat(historyFormat)
		if err != nil {
			return err
		}
		from, to, err := parseDateRange(historyFrom, historyTo, time.Now())
		if err != nil {
			return err
		}

		repo, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer repo.Close() //nolint:errcheck

		ps, err := repo.FindByDateRange(ctx, from, to)
		if err != nil {
			return err
		}

		if format == report.FormatXLSX {
			return report.WriteXLSX(cmd.OutOrStdout(), report.SummarizeAll(ps))
		}
		return report.RenderHistory(cmd.OutOrStdout(), report.SummarizeAll(ps), format)
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyFrom, "from", "", "first day, YYYY-MM-DD (UTC)")
	historyCmd.Flags().StringVar(&historyTo, "to", "", "last day, YYYY-MM-DD (UTC); default today")
	historyCmd.Flags().StringVar(&historyFormat, "format", "table", "output format: table, json, yaml or xlsx")
	rootCmd.AddCommand(historyCmd)
}
