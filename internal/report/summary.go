// Package report summarises portfolio snapshots and renders them as text
// tables, JSON, YAML or XLSX workbooks.
package report

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sells-group/portfolio-cli/internal/model"
)

// Position is the rendered view of one holding.
type Position struct {
	TickerCode       string  `json:"ticker_code" yaml:"ticker_code"`
	Name             string  `json:"name" yaml:"name"`
	AssetType        string  `json:"asset_type" yaml:"asset_type"`
	AccountType      string  `json:"account_type" yaml:"account_type"`
	Quantity         float64 `json:"quantity" yaml:"quantity"`
	AcquisitionPrice float64 `json:"acquisition_price" yaml:"acquisition_price"`
	CurrentPrice     float64 `json:"current_price" yaml:"current_price"`
	MarketValue      float64 `json:"market_value" yaml:"market_value"`
	AcquisitionValue float64 `json:"acquisition_value" yaml:"acquisition_value"`
	ProfitLoss       float64 `json:"profit_loss" yaml:"profit_loss"`
	ProfitLossRate   float64 `json:"profit_loss_rate" yaml:"profit_loss_rate"`
}

// Group totals the holdings of one asset type.
type Group struct {
	AssetType   string  `json:"asset_type" yaml:"asset_type"`
	Holdings    int     `json:"holdings" yaml:"holdings"`
	MarketValue float64 `json:"market_value" yaml:"market_value"`
	ProfitLoss  float64 `json:"profit_loss" yaml:"profit_loss"`
}

// Allocation is one ticker's share of the total value.
type Allocation struct {
	TickerCode string  `json:"ticker_code" yaml:"ticker_code"`
	Percent    float64 `json:"percent" yaml:"percent"`
}

// Summary is the derived view of a snapshot. Money values and percentages
// are rounded to two decimals.
type Summary struct {
	SnapshotAt            time.Time    `json:"snapshot_at" yaml:"snapshot_at"`
	Holdings              int          `json:"holdings" yaml:"holdings"`
	TotalValue            float64      `json:"total_value" yaml:"total_value"`
	TotalAcquisitionValue float64      `json:"total_acquisition_value" yaml:"total_acquisition_value"`
	TotalProfitLoss       float64      `json:"total_profit_loss" yaml:"total_profit_loss"`
	TotalProfitLossRate   float64      `json:"total_profit_loss_rate" yaml:"total_profit_loss_rate"`
	RiskLevel             string       `json:"risk_level" yaml:"risk_level"`
	Allocation            []Allocation `json:"allocation" yaml:"allocation"`
	Groups                []Group      `json:"groups" yaml:"groups"`
	Positions             []Position   `json:"positions" yaml:"positions"`
}

// Summarize derives the report view of p.
func Summarize(p *model.Portfolio) Summary {
	s := Summary{
		SnapshotAt:            p.SnapshotDate().UTC(),
		Holdings:              p.Len(),
		TotalValue:            round2(p.TotalValue()),
		TotalAcquisitionValue: round2(p.TotalAcquisitionValue()),
		TotalProfitLoss:       round2(p.TotalProfitLoss()),
		TotalProfitLossRate:   round2(p.TotalProfitLossRate()),
		RiskLevel:             string(p.RiskLevel()),
		Allocation:            []Allocation{},
		Groups:                []Group{},
		Positions:             make([]Position, 0, p.Len()),
	}

	for ticker, pct := range p.Allocation() {
		s.Allocation = append(s.Allocation, Allocation{TickerCode: ticker, Percent: round2(pct)})
	}
	// Largest share first, ties by ticker so output is stable.
	slices.SortFunc(s.Allocation, func(a, b Allocation) int {
		if c := cmp.Compare(b.Percent, a.Percent); c != 0 {
			return c
		}
		return cmp.Compare(a.TickerCode, b.TickerCode)
	})

	for _, t := range model.AllAssetTypes() {
		hs := p.ByAssetType(t)
		if len(hs) == 0 {
			continue
		}
		g := Group{AssetType: string(t), Holdings: len(hs)}
		var value, pl float64
		for _, h := range hs {
			value += h.MarketValue()
			pl += h.ProfitLoss()
		}
		g.MarketValue, g.ProfitLoss = round2(value), round2(pl)
		s.Groups = append(s.Groups, g)
	}

	for _, h := range p.Holdings() {
		s.Positions = append(s.Positions, Position{
			TickerCode:       h.TickerCode(),
			Name:             h.Name(),
			AssetType:        string(h.AssetType()),
			AccountType:      string(h.AccountType()),
			Quantity:         h.Quantity(),
			AcquisitionPrice: h.AcquisitionPrice(),
			CurrentPrice:     h.CurrentPrice(),
			MarketValue:      round2(h.MarketValue()),
			AcquisitionValue: round2(h.AcquisitionValue()),
			ProfitLoss:       round2(h.ProfitLoss()),
			ProfitLossRate:   round2(h.ProfitLossRate()),
		})
	}
	return s
}

// SummarizeAll summarises each snapshot in order.
func SummarizeAll(ps []*model.Portfolio) []Summary {
	out := make([]Summary, 0, len(ps))
	for _, p := range ps {
		out = append(out, Summarize(p))
	}
	return out
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
