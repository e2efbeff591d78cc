package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustStock(t *testing.T, ticker string, qty, acq, cur float64) Holding {
	t.Helper()
	h, err := NewStock(pos(ticker, qty, acq, cur), StockDetails{})
	require.NoError(t, err)
	return h
}

func sumAllocation(alloc map[string]float64) float64 {
	var sum float64
	for _, v := range alloc {
		sum += v
	}
	return sum
}

func TestPortfolio_Totals(t *testing.T) {
	t.Parallel()

	fund, err := NewMutualFund(pos("MF-1", 30000, 10000, 12000), FundDetails{})
	require.NoError(t, err)

	p := NewPortfolio([]Holding{
		mustStock(t, "7203", 100, 2000, 2500),
		fund,
	}, time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC))

	assert.Equal(t, 2, p.Len())
	assert.InDelta(t, 250000+36000, p.TotalValue(), 1e-9)
	assert.InDelta(t, 50000+6000, p.TotalProfitLoss(), 1e-9)
	assert.InDelta(t, 200000+30000, p.TotalAcquisitionValue(), 1e-9)
	assert.InDelta(t, 56000.0/230000.0*100, p.TotalProfitLossRate(), 1e-9)
}

func TestPortfolio_Empty(t *testing.T) {
	t.Parallel()

	p := NewPortfolio(nil, time.Now())
	assert.Zero(t, p.TotalValue())
	assert.Zero(t, p.TotalProfitLossRate())
	assert.Empty(t, p.Allocation())
	assert.Equal(t, RiskLow, p.RiskLevel())
}

func TestPortfolio_AllocationSumsToHundred(t *testing.T) {
	t.Parallel()

	p := NewPortfolio([]Holding{
		mustStock(t, "7203", 100, 2000, 2500),
		mustStock(t, "1605", 100, 1730, 2675),
		mustStock(t, "9432", 1000, 150, 170),
	}, time.Now())

	assert.InDelta(t, 100, sumAllocation(p.Allocation()), 1e-9)
}

func TestPortfolio_AllocationZeroTotal(t *testing.T) {
	t.Parallel()

	p := NewPortfolio([]Holding{
		mustStock(t, "7203", 100, 0, 0),
		mustStock(t, "1605", 100, 0, 0),
	}, time.Now())

	alloc := p.Allocation()
	assert.Len(t, alloc, 2)
	for ticker, pct := range alloc {
		assert.Zero(t, pct, ticker)
	}
}

func TestPortfolio_AllocationMergesTicker(t *testing.T) {
	t.Parallel()

	nisa := pos("7203", 100, 2000, 2500)
	nisa.AccountType = AccountNISAGrowth
	inNISA, err := NewStock(nisa, StockDetails{})
	require.NoError(t, err)

	p := NewPortfolio([]Holding{mustStock(t, "7203", 100, 2000, 2500), inNISA}, time.Now())
	assert.Equal(t, map[string]float64{"7203": 100}, p.Allocation())
	assert.Len(t, p.ByAccountType(AccountNISAGrowth), 1)
}

func TestPortfolio_RiskLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		values []float64
		want   RiskLevel
	}{
		{"single holding at 60 percent", []float64{60, 20, 20}, RiskHigh},
		{"single holding at 35 percent", []float64{35, 25, 20, 20}, RiskMedium},
		{"evenly split", []float64{25, 25, 25, 25}, RiskLow},
		{"exactly 50 percent", []float64{50, 25, 25}, RiskMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var hs []Holding
			for i, v := range tt.values {
				hs = append(hs, mustStock(t, string(rune('A'+i)), 1, v, v))
			}
			assert.Equal(t, tt.want, NewPortfolio(hs, time.Now()).RiskLevel())
		})
	}
}

func TestPortfolio_ByAssetType(t *testing.T) {
	t.Parallel()

	fund, err := NewMutualFund(pos("MF-1", 1, 1, 1), FundDetails{})
	require.NoError(t, err)
	p := NewPortfolio([]Holding{mustStock(t, "7203", 1, 1, 1), fund, mustStock(t, "1605", 1, 1, 1)}, time.Now())

	stocks := p.ByAssetType(AssetTypeStock)
	require.Len(t, stocks, 2)
	assert.Equal(t, "7203", stocks[0].TickerCode())
	assert.Equal(t, "1605", stocks[1].TickerCode())
	assert.Len(t, p.ByAssetType(AssetTypeMutualFund), 1)
	assert.Empty(t, p.ByAssetType(AssetTypeForeignStock))
}

func TestPortfolio_IsolatedFromCallerSlice(t *testing.T) {
	t.Parallel()

	hs := []Holding{mustStock(t, "7203", 1, 1, 1)}
	p := NewPortfolio(hs, time.Now())
	hs[0] = mustStock(t, "9999", 1, 1, 1)

	assert.Equal(t, "7203", p.Holdings()[0].TickerCode())
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	err := NewError(KindDeviceAuthTimeout, "session: device auth", nil)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindDeviceAuthTimeout, kind)
	assert.True(t, kind.Retryable())
	assert.False(t, KindAuthenticationRejected.Retryable())
	assert.True(t, IsKind(err, KindDeviceAuthTimeout))
	assert.Contains(t, err.Error(), "device_auth_timeout")

	_, ok = KindOf(assert.AnError)
	assert.False(t, ok)
}
