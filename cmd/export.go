package main

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/portfolio-cli/internal/model"
	"github.com/sells-group/portfolio-cli/internal/report"
)

var (
	exportFrom   string
	exportTo     string
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored snapshots to a file",
	Long:  "Writes the latest snapshot, or every snapshot between --from and --to, as an XLSX workbook, JSON or YAML.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		format, err := report.ParseFormat(exportFormat)
		if err != nil {
			return err
		}
		if format == report.FormatTable {
			return eris.New("export: table output is only available from show and history")
		}

		repo, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer repo.Close() //nolint:errcheck

		var ps []*model.Portfolio
		if exportFrom == "" && exportTo == "" {
			p, err := repo.FindLatest(ctx)
			if err != nil {
				return err
			}
			ps = []*model.Portfolio{p}
		} else {
			from, to, err := parseDateRange(exportFrom, exportTo, time.Now())
			if err != nil {
				return err
			}
			if ps, err = repo.FindByDateRange(ctx, from, to); err != nil {
				return err
			}
		}

		return writeExport(cmd.OutOrStdout(), exportOut, format, report.SummarizeAll(ps))
	},
}

// writeExport writes summaries to path, or to stdout when path is "-".
func writeExport(stdout io.Writer, path string, format report.Format, ss []report.Summary) error {
	write := func(w io.Writer) error {
		switch format {
		case report.FormatXLSX:
			return report.WriteXLSX(w, ss)
		default:
			return report.RenderHistory(w, ss, format)
		}
	}

	if path == "-" {
		return write(stdout)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "export: create output dir")
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create output file")
	}
	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close() //nolint:errcheck
		return eris.Wrap(err, "export: flush output file")
	}
	if err := f.Close(); err != nil {
		return eris.Wrap(err, "export: close output file")
	}

	zap.L().Info("export: wrote snapshots",
		zap.String("path", path),
		zap.String("format", string(format)),
		zap.Int("snapshots", len(ss)),
	)
	return nil
}

func init() {
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "first day, YYYY-MM-DD (UTC)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "last day, YYYY-MM-DD (UTC)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "xlsx", "output format: xlsx, json or yaml")
	exportCmd.Flags().StringVar(&exportOut, "out", "portfolio.xlsx", `output path, or "-" for stdout`)
	rootCmd.AddCommand(exportCmd)
}
