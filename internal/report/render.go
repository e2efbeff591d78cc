package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// Format selects a text rendering.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatXLSX  Format = "xlsx"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatJSON, FormatYAML, FormatXLSX:
		return f, nil
	}
	return "", eris.Errorf("report: unknown format %q", s)
}

// Render writes one snapshot summary to w. XLSX is binary and goes through
// WriteXLSX instead.
func Render(w io.Writer, s Summary, f Format) error {
	switch f {
	case FormatTable:
		return renderTable(w, s)
	case FormatJSON:
		return renderJSON(w, s)
	case FormatYAML:
		return renderYAML(w, s)
	}
	return eris.Errorf("report: format %q cannot be rendered as text", f)
}

// RenderHistory writes a series of summaries to w. The table form shows one
// line per snapshot.
func RenderHistory(w io.Writer, ss []Summary, f Format) error {
	switch f {
	case FormatTable:
		return renderHistoryTable(w, ss)
	case FormatJSON:
		return renderJSON(w, ss)
	case FormatYAML:
		return renderYAML(w, ss)
	}
	return eris.Errorf("report: format %q cannot be rendered as text", f)
}

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "report: encode json")
}

func renderYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "report: encode yaml")
	}
	return eris.Wrap(enc.Close(), "report: close yaml encoder")
}

func renderTable(w io.Writer, s Summary) error {
	fmt.Fprintf(w, "Snapshot:     %s\n", s.SnapshotAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "Holdings:     %d\n", s.Holdings)
	fmt.Fprintf(w, "Total value:  %s\n", yen(s.TotalValue))
	fmt.Fprintf(w, "Cost basis:   %s\n", yen(s.TotalAcquisitionValue))
	fmt.Fprintf(w, "Profit/loss:  %s (%+.2f%%)\n", yen(s.TotalProfitLoss), s.TotalProfitLossRate)
	fmt.Fprintf(w, "Risk level:   %s\n\n", s.RiskLevel)

	if len(s.Positions) == 0 {
		fmt.Fprintln(w, "No holdings.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TICKER\tNAME\tTYPE\tACCOUNT\tQTY\tCOST\tPRICE\tVALUE\tP/L\tP/L %")
	for _, p := range s.Positions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%+.2f\n",
			p.TickerCode, p.Name, p.AssetType, p.AccountType,
			trimFloat(p.Quantity), trimFloat(p.AcquisitionPrice), trimFloat(p.CurrentPrice),
			yen(p.MarketValue), yen(p.ProfitLoss), p.ProfitLossRate,
		)
	}
	if err := tw.Flush(); err != nil {
		return eris.Wrap(err, "report: flush table")
	}

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ASSET TYPE\tHOLDINGS\tVALUE\tP/L")
	for _, g := range s.Groups {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", g.AssetType, g.Holdings, yen(g.MarketValue), yen(g.ProfitLoss))
	}
	return eris.Wrap(tw.Flush(), "report: flush table")
}

func renderHistoryTable(w io.Writer, ss []Summary) error {
	if len(ss) == 0 {
		fmt.Fprintln(w, "No snapshots found.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SNAPSHOT\tHOLDINGS\tVALUE\tP/L\tP/L %\tRISK")
	for _, s := range ss {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%+.2f\t%s\n",
			s.SnapshotAt.Format("2006-01-02 15:04"), s.Holdings,
			yen(s.TotalValue), yen(s.TotalProfitLoss), s.TotalProfitLossRate, s.RiskLevel,
		)
	}
	return eris.Wrap(tw.Flush(), "report: flush table")
}

var printer = message.NewPrinter(language.English)

// yen formats v with thousands separators and no fraction.
func yen(v float64) string {
	n := int64(math.Round(v))
	if n < 0 {
		return printer.Sprintf("-¥%d", -n)
	}
	return printer.Sprintf("¥%d", n)
}

func trimFloat(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}
