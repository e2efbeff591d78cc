// Package store persists portfolio snapshots. Each holding is one row in
// portfolio_snapshots; every row of a snapshot shares the same snapshot
// instant.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/portfolio-cli/internal/model"
)

// ErrNotFound is returned when no snapshot exists for a lookup.
var ErrNotFound = eris.New("store: snapshot not found")

// PortfolioRepository defines the persistence interface for snapshots.
type PortfolioRepository interface {
	// Save writes every holding of p under p's snapshot instant. An empty
	// portfolio writes nothing.
	Save(ctx context.Context, p *model.Portfolio) error
	// FindLatest returns the most recent snapshot.
	FindLatest(ctx context.Context) (*model.Portfolio, error)
	// FindByDate returns the snapshot taken at exactly at.
	FindByDate(ctx context.Context, at time.Time) (*model.Portfolio, error)
	// FindByDateRange returns the snapshots taken in [from, to], oldest first.
	FindByDateRange(ctx context.Context, from, to time.Time) ([]*model.Portfolio, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Config selects and configures a repository backend.
type Config struct {
	Driver      string
	DatabaseURL string
	Pool        *PoolConfig
}

// Open connects the repository named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (PortfolioRepository, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, cfg.Pool)
	default:
		return nil, eris.Errorf("store: unsupported driver %q", cfg.Driver)
	}
}

// snapshotInstant normalises a snapshot time to the precision both backends
// keep.
func snapshotInstant(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// record is one persisted holding row.
type record struct {
	ID               string
	SnapshotAt       time.Time
	TickerCode       string
	Name             string
	AssetType        string
	AccountType      string
	Quantity         float64
	AcquisitionPrice float64
	CurrentPrice     float64
	MarketValue      float64
	ProfitLoss       float64
	ProfitLossRate   float64
	AdditionalInfo   []byte
}

func toRecord(id string, at time.Time, h model.Holding) (record, error) {
	var extras any
	switch h.AssetType() {
	case model.AssetTypeStock:
		extras, _ = h.StockDetails()
	case model.AssetTypeMutualFund:
		extras, _ = h.FundDetails()
	case model.AssetTypeForeignStock:
		extras, _ = h.ForeignDetails()
	}
	info, err := json.Marshal(extras)
	if err != nil {
		return record{}, eris.Wrapf(err, "store: marshal additional info for %s", h.TickerCode())
	}
	return record{
		ID:               id,
		SnapshotAt:       at,
		TickerCode:       h.TickerCode(),
		Name:             h.Name(),
		AssetType:        string(h.AssetType()),
		AccountType:      string(h.AccountType()),
		Quantity:         h.Quantity(),
		AcquisitionPrice: h.AcquisitionPrice(),
		CurrentPrice:     h.CurrentPrice(),
		MarketValue:      h.MarketValue(),
		ProfitLoss:       h.ProfitLoss(),
		ProfitLossRate:   h.ProfitLossRate(),
		AdditionalInfo:   info,
	}, nil
}

// hydrate rebuilds a Holding from its row. The derived value columns are
// ignored; they are recomputed by the model.
func hydrate(r record) (model.Holding, error) {
	assetType, ok := model.ParseAssetType(r.AssetType)
	if !ok {
		return model.Holding{}, model.NewError(model.KindUnknownAssetType, "store: hydrate",
			eris.Errorf("ticker %s has asset type %q", r.TickerCode, r.AssetType))
	}
	pos := model.Position{
		TickerCode:       r.TickerCode,
		Name:             r.Name,
		Quantity:         r.Quantity,
		AcquisitionPrice: r.AcquisitionPrice,
		CurrentPrice:     r.CurrentPrice,
		AccountType:      model.AccountType(r.AccountType),
	}

	var (
		h   model.Holding
		err error
	)
	switch assetType {
	case model.AssetTypeStock:
		var d model.StockDetails
		if err := unmarshalInfo(r, &d); err != nil {
			return model.Holding{}, err
		}
		h, err = model.NewStock(pos, d)
	case model.AssetTypeMutualFund:
		var d model.FundDetails
		if err := unmarshalInfo(r, &d); err != nil {
			return model.Holding{}, err
		}
		h, err = model.NewMutualFund(pos, d)
	case model.AssetTypeForeignStock:
		var d model.ForeignDetails
		if err := unmarshalInfo(r, &d); err != nil {
			return model.Holding{}, err
		}
		h, err = model.NewForeignStock(pos, d)
	}
	if err != nil {
		return model.Holding{}, eris.Wrapf(err, "store: hydrate %s", r.TickerCode)
	}
	return h, nil
}

func unmarshalInfo(r record, v any) error {
	if len(r.AdditionalInfo) == 0 {
		return nil
	}
	return eris.Wrapf(json.Unmarshal(r.AdditionalInfo, v), "store: decode additional info for %s", r.TickerCode)
}

// assemble hydrates rows into portfolios, one per distinct snapshot
// instant, preserving row order. Rows must arrive grouped by instant.
func assemble(rows []record) ([]*model.Portfolio, error) {
	var (
		out      []*model.Portfolio
		holdings []model.Holding
		current  time.Time
	)
	flush := func() {
		if len(holdings) > 0 {
			out = append(out, model.NewPortfolio(holdings, current))
		}
		holdings = nil
	}
	for _, r := range rows {
		at := snapshotInstant(r.SnapshotAt)
		if !at.Equal(current) {
			flush()
			current = at
		}
		h, err := hydrate(r)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, h)
	}
	flush()
	return out, nil
}

// single assembles rows that belong to one snapshot.
func single(rows []record) (*model.Portfolio, error) {
	ps, err := assemble(rows)
	if err != nil {
		return nil, err
	}
	if len(ps) == 0 {
		return nil, ErrNotFound
	}
	return ps[0], nil
}
