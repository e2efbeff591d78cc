package model

import (
	"fmt"
	"math"
)

// AssetType identifies which holding variant a record is.
type AssetType string

const (
	AssetTypeStock        AssetType = "stock"
	AssetTypeMutualFund   AssetType = "mutual_fund"
	AssetTypeForeignStock AssetType = "foreign_stock"
)

// AllAssetTypes returns every asset type in display order.
func AllAssetTypes() []AssetType {
	return []AssetType{AssetTypeStock, AssetTypeMutualFund, AssetTypeForeignStock}
}

// ParseAssetType maps a persisted asset type string to its AssetType.
func ParseAssetType(s string) (AssetType, bool) {
	switch AssetType(s) {
	case AssetTypeStock, AssetTypeMutualFund, AssetTypeForeignStock:
		return AssetType(s), true
	}
	return "", false
}

// AccountType is the tax wrapper a holding is kept in.
type AccountType string

const (
	AccountSpecific         AccountType = "specific"
	AccountGeneral          AccountType = "general"
	AccountNISAGrowth       AccountType = "nisa_growth"
	AccountNISATsumitate    AccountType = "nisa_tsumitate"
	AccountNISAOldTsumitate AccountType = "nisa_old_tsumitate"
)

// AllAccountTypes returns every account type.
func AllAccountTypes() []AccountType {
	return []AccountType{
		AccountSpecific,
		AccountGeneral,
		AccountNISAGrowth,
		AccountNISATsumitate,
		AccountNISAOldTsumitate,
	}
}

// ParseAccountType maps a persisted account type string to its AccountType.
func ParseAccountType(s string) (AccountType, bool) {
	for _, a := range AllAccountTypes() {
		if string(a) == s {
			return a, true
		}
	}
	return "", false
}

// IsNISA reports whether the account is one of the tax-exempt NISA wrappers.
func (a AccountType) IsNISA() bool {
	switch a {
	case AccountNISAGrowth, AccountNISATsumitate, AccountNISAOldTsumitate:
		return true
	}
	return false
}

// FundLotUnits is the number of fund units a mutual fund price is quoted for.
const FundLotUnits = 10000

// Position carries the fields shared by every holding variant.
type Position struct {
	TickerCode       string
	Name             string
	Quantity         float64
	AcquisitionPrice float64
	CurrentPrice     float64
	AccountType      AccountType
}

// StockDetails are the optional extras of a domestic stock.
type StockDetails struct {
	Market        string   `json:"market,omitempty"`
	DividendYield *float64 `json:"dividend_yield,omitempty"`
}

// FundDetails are the optional extras of a mutual fund.
type FundDetails struct {
	Category string   `json:"category,omitempty"`
	TrustFee *float64 `json:"trust_fee,omitempty"`
	IsNISA   *bool    `json:"is_nisa,omitempty"`
}

// ForeignDetails describe the listing and currency of a foreign stock.
// CurrentPrice on the position is already converted to yen.
type ForeignDetails struct {
	Country      string   `json:"country"`
	Currency     string   `json:"currency"`
	ExchangeRate float64  `json:"exchange_rate"`
	LocalPrice   *float64 `json:"local_price,omitempty"`
}

// ValidationError reports a holding that violates a construction invariant.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("model: invalid holding %s=%v: %s", e.Field, e.Value, e.Reason)
}

// Holding is one position in a portfolio snapshot. It is a tagged variant:
// AssetType selects which of the detail blocks is meaningful. Holdings are
// immutable once constructed.
type Holding struct {
	assetType        AssetType
	tickerCode       string
	name             string
	quantity         float64
	acquisitionPrice float64
	currentPrice     float64
	accountType      AccountType

	stock   StockDetails
	fund    FundDetails
	foreign ForeignDetails
}

// NewStock constructs a domestic stock holding.
func NewStock(p Position, d StockDetails) (Holding, error) {
	h, err := newHolding(AssetTypeStock, p)
	if err != nil {
		return Holding{}, err
	}
	h.stock = d
	return h, nil
}

// NewMutualFund constructs a mutual fund holding.
func NewMutualFund(p Position, d FundDetails) (Holding, error) {
	h, err := newHolding(AssetTypeMutualFund, p)
	if err != nil {
		return Holding{}, err
	}
	h.fund = d
	return h, nil
}

// NewForeignStock constructs a foreign stock holding.
func NewForeignStock(p Position, d ForeignDetails) (Holding, error) {
	h, err := newHolding(AssetTypeForeignStock, p)
	if err != nil {
		return Holding{}, err
	}
	if d.ExchangeRate < 0 || math.IsNaN(d.ExchangeRate) {
		return Holding{}, &ValidationError{Field: "exchange_rate", Value: d.ExchangeRate, Reason: "must be non-negative"}
	}
	h.foreign = d
	return h, nil
}

func newHolding(t AssetType, p Position) (Holding, error) {
	if p.TickerCode == "" {
		return Holding{}, &ValidationError{Field: "ticker_code", Value: p.TickerCode, Reason: "must not be empty"}
	}
	if !(p.Quantity > 0) || math.IsInf(p.Quantity, 0) {
		return Holding{}, &ValidationError{Field: "quantity", Value: p.Quantity, Reason: "must be positive"}
	}
	if !(p.AcquisitionPrice >= 0) {
		return Holding{}, &ValidationError{Field: "acquisition_price", Value: p.AcquisitionPrice, Reason: "must be non-negative"}
	}
	if !(p.CurrentPrice >= 0) {
		return Holding{}, &ValidationError{Field: "current_price", Value: p.CurrentPrice, Reason: "must be non-negative"}
	}
	if _, ok := ParseAccountType(string(p.AccountType)); !ok {
		return Holding{}, &ValidationError{Field: "account_type", Value: p.AccountType, Reason: "unknown account type"}
	}
	return Holding{
		assetType:        t,
		tickerCode:       p.TickerCode,
		name:             p.Name,
		quantity:         p.Quantity,
		acquisitionPrice: p.AcquisitionPrice,
		currentPrice:     p.CurrentPrice,
		accountType:      p.AccountType,
	}, nil
}

func (h Holding) AssetType() AssetType      { return h.assetType }
func (h Holding) TickerCode() string        { return h.tickerCode }
func (h Holding) Name() string              { return h.name }
func (h Holding) Quantity() float64         { return h.quantity }
func (h Holding) AcquisitionPrice() float64 { return h.acquisitionPrice }
func (h Holding) CurrentPrice() float64     { return h.currentPrice }
func (h Holding) AccountType() AccountType  { return h.accountType }

// Position returns the shared fields of the holding.
func (h Holding) Position() Position {
	return Position{
		TickerCode:       h.tickerCode,
		Name:             h.name,
		Quantity:         h.quantity,
		AcquisitionPrice: h.acquisitionPrice,
		CurrentPrice:     h.currentPrice,
		AccountType:      h.accountType,
	}
}

// StockDetails returns the stock extras; ok is false for other variants.
func (h Holding) StockDetails() (StockDetails, bool) {
	return h.stock, h.assetType == AssetTypeStock
}

// FundDetails returns the fund extras; ok is false for other variants.
func (h Holding) FundDetails() (FundDetails, bool) {
	return h.fund, h.assetType == AssetTypeMutualFund
}

// ForeignDetails returns the foreign extras; ok is false for other variants.
func (h Holding) ForeignDetails() (ForeignDetails, bool) {
	return h.foreign, h.assetType == AssetTypeForeignStock
}

// unitsPerPrice is the valuation rule of each variant: how many units the
// quoted price refers to.
func unitsPerPrice(t AssetType) float64 {
	switch t {
	case AssetTypeMutualFund:
		return FundLotUnits
	case AssetTypeStock, AssetTypeForeignStock:
		return 1
	}
	panic(fmt.Sprintf("model: unhandled asset type %q", t))
}

// MarketValue is the current value of the holding in yen.
func (h Holding) MarketValue() float64 {
	return h.currentPrice * h.quantity / unitsPerPrice(h.assetType)
}

// AcquisitionValue is the cost basis of the holding in yen.
func (h Holding) AcquisitionValue() float64 {
	return h.acquisitionPrice * h.quantity / unitsPerPrice(h.assetType)
}

// ProfitLoss is the unrealised gain or loss in yen.
func (h Holding) ProfitLoss() float64 {
	return (h.currentPrice - h.acquisitionPrice) * h.quantity / unitsPerPrice(h.assetType)
}

// ProfitLossRate is ProfitLoss as a percentage of AcquisitionValue, or 0
// when there is no cost basis.
func (h Holding) ProfitLossRate() float64 {
	if h.acquisitionPrice == 0 {
		return 0
	}
	return h.ProfitLoss() / h.AcquisitionValue() * 100
}

// LocalMarketValue is the value of a foreign holding in its listing currency.
// It is 0 for other variants or when no local price was captured.
func (h Holding) LocalMarketValue() float64 {
	if h.assetType != AssetTypeForeignStock || h.foreign.LocalPrice == nil {
		return 0
	}
	return *h.foreign.LocalPrice * h.quantity
}
