package report

import (
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

const (
	snapshotSheet = "Snapshots"
	holdingSheet  = "Holdings"
)

var (
	snapshotHeader = []string{
		"snapshot_at", "holdings", "total_value", "total_acquisition_value",
		"total_profit_loss", "total_profit_loss_rate", "risk_level",
	}
	holdingHeader = []string{
		"snapshot_at", "ticker_code", "name", "asset_type", "account_type", "quantity",
		"acquisition_price", "current_price", "market_value", "acquisition_value",
		"profit_loss", "profit_loss_rate",
	}
)

// WriteXLSX writes the summaries as a workbook with one row per snapshot on
// the Snapshots sheet and one row per holding on the Holdings sheet.
func WriteXLSX(w io.Writer, ss []Summary) error {
	f := xlsx.NewFile()

	snapshots, err := f.AddSheet(snapshotSheet)
	if err != nil {
		return eris.Wrap(err, "xlsx: add snapshot sheet")
	}
	holdings, err := f.AddSheet(holdingSheet)
	if err != nil {
		return eris.Wrap(err, "xlsx: add holding sheet")
	}
	addHeader(snapshots, snapshotHeader)
	addHeader(holdings, holdingHeader)

	for _, s := range ss {
		at := s.SnapshotAt.UTC().Format(time.RFC3339)

		row := snapshots.AddRow()
		row.AddCell().SetString(at)
		row.AddCell().SetInt(s.Holdings)
		row.AddCell().SetFloat(s.TotalValue)
		row.AddCell().SetFloat(s.TotalAcquisitionValue)
		row.AddCell().SetFloat(s.TotalProfitLoss)
		row.AddCell().SetFloat(s.TotalProfitLossRate)
		row.AddCell().SetString(s.RiskLevel)

		for _, p := range s.Positions {
			row := holdings.AddRow()
			row.AddCell().SetString(at)
			row.AddCell().SetString(p.TickerCode)
			row.AddCell().SetString(p.Name)
			row.AddCell().SetString(p.AssetType)
			row.AddCell().SetString(p.AccountType)
			for _, v := range []float64{
				p.Quantity, p.AcquisitionPrice, p.CurrentPrice, p.MarketValue,
				p.AcquisitionValue, p.ProfitLoss, p.ProfitLossRate,
			} {
				row.AddCell().SetFloat(v)
			}
		}
	}

	return eris.Wrap(f.Write(w), "xlsx: write workbook")
}

func addHeader(sheet *xlsx.Sheet, cols []string) {
	row := sheet.AddRow()
	for _, c := range cols {
		row.AddCell().SetString(c)
	}
}
