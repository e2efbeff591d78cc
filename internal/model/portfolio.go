package model

import (
	"slices"
	"time"
)

// RiskLevel classifies how concentrated a portfolio is.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "HIGH"
	RiskMedium RiskLevel = "MEDIUM"
	RiskLow    RiskLevel = "LOW"
)

const (
	highConcentrationPct   = 50.0
	mediumConcentrationPct = 30.0
)

// Portfolio is an immutable snapshot of holdings taken at one instant.
type Portfolio struct {
	holdings     []Holding
	snapshotDate time.Time
}

// NewPortfolio creates a snapshot. The holdings slice is copied.
func NewPortfolio(holdings []Holding, snapshotDate time.Time) *Portfolio {
	return &Portfolio{
		holdings:     slices.Clone(holdings),
		snapshotDate: snapshotDate,
	}
}

// Holdings returns a copy of the holdings in snapshot order.
func (p *Portfolio) Holdings() []Holding {
	return slices.Clone(p.holdings)
}

// Len returns the number of holdings.
func (p *Portfolio) Len() int { return len(p.holdings) }

// SnapshotDate is the instant every holding in the snapshot was captured.
func (p *Portfolio) SnapshotDate() time.Time { return p.snapshotDate }

// TotalValue sums the market value of every holding.
func (p *Portfolio) TotalValue() float64 {
	var sum float64
	for _, h := range p.holdings {
		sum += h.MarketValue()
	}
	return sum
}

// TotalAcquisitionValue sums the cost basis of every holding.
func (p *Portfolio) TotalAcquisitionValue() float64 {
	var sum float64
	for _, h := range p.holdings {
		sum += h.AcquisitionValue()
	}
	return sum
}

// TotalProfitLoss sums the unrealised gain or loss of every holding.
func (p *Portfolio) TotalProfitLoss() float64 {
	var sum float64
	for _, h := range p.holdings {
		sum += h.ProfitLoss()
	}
	return sum
}

// TotalProfitLossRate is TotalProfitLoss as a percentage of the total cost
// basis, or 0 when there is none.
func (p *Portfolio) TotalProfitLossRate() float64 {
	basis := p.TotalAcquisitionValue()
	if basis == 0 {
		return 0
	}
	return p.TotalProfitLoss() / basis * 100
}

// Allocation maps each ticker to its percentage of TotalValue. A ticker held
// in several accounts is summed. Every entry is 0 when the total is 0.
func (p *Portfolio) Allocation() map[string]float64 {
	total := p.TotalValue()
	alloc := make(map[string]float64, len(p.holdings))
	for _, h := range p.holdings {
		var pct float64
		if total > 0 {
			pct = h.MarketValue() / total * 100
		}
		alloc[h.TickerCode()] += pct
	}
	return alloc
}

// RiskLevel classifies the portfolio by its largest single allocation.
func (p *Portfolio) RiskLevel() RiskLevel {
	var maxPct float64
	for _, pct := range p.Allocation() {
		maxPct = max(maxPct, pct)
	}
	switch {
	case maxPct > highConcentrationPct:
		return RiskHigh
	case maxPct > mediumConcentrationPct:
		return RiskMedium
	default:
		return RiskLow
	}
}

// ByAssetType returns the holdings of one variant, in snapshot order.
func (p *Portfolio) ByAssetType(t AssetType) []Holding {
	var out []Holding
	for _, h := range p.holdings {
		if h.AssetType() == t {
			out = append(out, h)
		}
	}
	return out
}

// ByAccountType returns the holdings kept in one account type, in snapshot order.
func (p *Portfolio) ByAccountType(a AccountType) []Holding {
	var out []Holding
	for _, h := range p.holdings {
		if h.AccountType() == a {
			out = append(out, h)
		}
	}
	return out
}
