package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/portfolio-cli/internal/db"
	"github.com/sells-group/portfolio-cli/internal/model"
)

// PostgresStore implements PortfolioRepository using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const pgSelect = `SELECT id, snapshot_at, ticker_code, name, asset_type, account_type, quantity,
	acquisition_price, current_price, market_value, profit_loss, profit_loss_rate, additional_info
	FROM portfolio_snapshots`

const (
	pgFindLatest = pgSelect + `
	WHERE snapshot_at = (SELECT MAX(snapshot_at) FROM portfolio_snapshots)
	ORDER BY position`
	pgFindByDate = pgSelect + `
	WHERE snapshot_at = $1
	ORDER BY position`
	pgFindByDateRange = pgSelect + `
	WHERE snapshot_at >= $1 AND snapshot_at <= $2
	ORDER BY snapshot_at ASC, position ASC`
)

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"find_latest":        pgFindLatest,
	"find_by_date":       pgFindByDate,
	"find_by_date_range": pgFindByDateRange,
}

var snapshotTable = pgx.Identifier{"portfolio_snapshots"}

var snapshotColumns = []string{
	"id", "snapshot_at", "position", "ticker_code", "name", "asset_type", "account_type",
	"quantity", "acquisition_price", "current_price", "market_value", "profit_loss",
	"profit_loss_rate", "additional_info",
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS portfolio_snapshots (
	id                TEXT PRIMARY KEY,
	snapshot_at       TIMESTAMPTZ NOT NULL,
	position          INTEGER NOT NULL,
	ticker_code       TEXT NOT NULL,
	name              TEXT NOT NULL,
	asset_type        TEXT NOT NULL,
	account_type      TEXT NOT NULL,
	quantity          DOUBLE PRECISION NOT NULL,
	acquisition_price DOUBLE PRECISION NOT NULL,
	current_price     DOUBLE PRECISION NOT NULL,
	market_value      DOUBLE PRECISION NOT NULL,
	profit_loss       DOUBLE PRECISION NOT NULL,
	profit_loss_rate  DOUBLE PRECISION NOT NULL,
	additional_info   JSONB NOT NULL DEFAULT '{}'::jsonb
);

CREATE INDEX IF NOT EXISTS idx_portfolio_snapshots_snapshot_at ON portfolio_snapshots(snapshot_at);
CREATE INDEX IF NOT EXISTS idx_portfolio_snapshots_ticker ON portfolio_snapshots(ticker_code);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, p *model.Portfolio) error {
	if p.Len() == 0 {
		zap.L().Debug("postgres: empty portfolio, nothing to save")
		return nil
	}
	at := snapshotInstant(p.SnapshotDate())

	rows := make([][]any, 0, p.Len())
	for i, h := range p.Holdings() {
		r, err := toRecord(uuid.New().String(), at, h)
		if err != nil {
			return err
		}
		rows = append(rows, []any{
			r.ID, r.SnapshotAt, i, r.TickerCode, r.Name, r.AssetType, r.AccountType,
			r.Quantity, r.AcquisitionPrice, r.CurrentPrice, r.MarketValue, r.ProfitLoss,
			r.ProfitLossRate, r.AdditionalInfo,
		})
	}

	if _, err := db.CopyRows(ctx, s.pool, snapshotTable, snapshotColumns, rows); err != nil {
		return eris.Wrap(err, "postgres: save snapshot")
	}
	zap.L().Info("postgres: saved snapshot",
		zap.Time("snapshot_at", at),
		zap.Int("holdings", len(rows)),
	)
	return nil
}

func (s *PostgresStore) FindLatest(ctx context.Context) (*model.Portfolio, error) {
	rows, err := s.query(ctx, pgFindLatest)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find latest")
	}
	return single(rows)
}

func (s *PostgresStore) FindByDate(ctx context.Context, at time.Time) (*model.Portfolio, error) {
	rows, err := s.query(ctx, pgFindByDate, snapshotInstant(at))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find by date")
	}
	return single(rows)
}

func (s *PostgresStore) FindByDateRange(ctx context.Context, from, to time.Time) ([]*model.Portfolio, error) {
	rows, err := s.query(ctx, pgFindByDateRange, snapshotInstant(from), snapshotInstant(to))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find by date range")
	}
	return assemble(rows)
}

func (s *PostgresStore) query(ctx context.Context, sql string, args ...any) ([]record, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []record
	for rows.Next() {
		var r record
		if err := rows.Scan(&r.ID, &r.SnapshotAt, &r.TickerCode, &r.Name, &r.AssetType, &r.AccountType,
			&r.Quantity, &r.AcquisitionPrice, &r.CurrentPrice, &r.MarketValue, &r.ProfitLoss,
			&r.ProfitLossRate, &r.AdditionalInfo); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
