package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/portfolio-cli/internal/model"
)

func ptr[T any](v T) *T { return &v }

func sampleHoldings(t *testing.T) []model.Holding {
	t.Helper()
	stock, err := model.NewStock(model.Position{
		TickerCode:       "7203",
		Name:             "トヨタ自動車",
		Quantity:         100,
		AcquisitionPrice: 2000,
		CurrentPrice:     2500,
		AccountType:      model.AccountSpecific,
	}, model.StockDetails{Market: "東証プライム", DividendYield: ptr(2.5)})
	require.NoError(t, err)

	fund, err := model.NewMutualFund(model.Position{
		TickerCode:       "MF-8b4c2d10",
		Name:             "eMAXIS Slim 全世界株式",
		Quantity:         30000,
		AcquisitionPrice: 12000,
		CurrentPrice:     15000,
		AccountType:      model.AccountNISATsumitate,
	}, model.FundDetails{Category: "global_equity", IsNISA: ptr(true)})
	require.NoError(t, err)

	foreign, err := model.NewForeignStock(model.Position{
		TickerCode:       "AAPL",
		Name:             "Apple Inc.",
		Quantity:         10,
		AcquisitionPrice: 22000,
		CurrentPrice:     28500,
		AccountType:      model.AccountGeneral,
	}, model.ForeignDetails{Country: "US", Currency: "USD", ExchangeRate: 150, LocalPrice: ptr(190.0)})
	require.NoError(t, err)

	return []model.Holding{stock, fund, foreign}
}

// assertSamePortfolio compares two snapshots field by field.
func assertSamePortfolio(t *testing.T, want, got *model.Portfolio) {
	t.Helper()
	require.NotNil(t, got)
	assert.True(t, want.SnapshotDate().Equal(got.SnapshotDate()),
		"snapshot %s != %s", want.SnapshotDate(), got.SnapshotDate())
	assert.Equal(t, want.Holdings(), got.Holdings())
	assert.InDelta(t, want.TotalValue(), got.TotalValue(), 1e-9)
}

var (
	day1 = time.Date(2025, 3, 3, 6, 30, 0, 0, time.UTC)
	day2 = time.Date(2025, 3, 4, 6, 30, 0, 0, time.UTC)
	day3 = time.Date(2025, 3, 5, 6, 30, 0, 0, time.UTC)
)
