package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/portfolio-cli/internal/model"
	"github.com/sells-group/portfolio-cli/internal/report"
)

var (
	showAt     string
	showFormat string
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a stored snapshot",
	Long:  "Prints the latest stored snapshot, or the one taken at exactly --at.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		format, err := report.ParseFormat(showFormat)
		if err != nil {
			return err
		}

		repo, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer repo.Close() //nolint:errcheck

		var p *model.Portfolio
		if showAt == "" {
			p, err = repo.FindLatest(ctx)
		} else {
			at, perr := time.Parse(time.RFC3339Nano, showAt)
			if perr != nil {
				return eris.Wrapf(perr, "invalid --at %q (want RFC 3339)", showAt)
			}
			p, err = repo.FindByDate(ctx, at)
		}
		if err != nil {
			return err
		}

		if format == report.FormatXLSX {
			return report.WriteXLSX(cmd.OutOrStdout(), []report.Summary{report.Summarize(p)})
		}
		return report.Render(cmd.OutOrStdout(), report.Summarize(p), format)
	},
}

func init() {
	showCmd.Flags().StringVar(&showAt, "at", "", "exact snapshot instant (RFC 3339); default latest")
	showCmd.Flags().StringVar(&showFormat, "format", "table", "output format: table, json, yaml or xlsx")
	rootCmd.AddCommand(showCmd)
}
