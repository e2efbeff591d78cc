package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/portfolio-cli/internal/model"
)

// SQLiteStore implements PortfolioRepository using modernc.org/sqlite.
// Snapshot instants are stored as Unix milliseconds.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS portfolio_snapshots (
	id                TEXT PRIMARY KEY,
	snapshot_at       INTEGER NOT NULL,
	position          INTEGER NOT NULL,
	ticker_code       TEXT NOT NULL,
	name              TEXT NOT NULL,
	asset_type        TEXT NOT NULL,
	account_type      TEXT NOT NULL,
	quantity          REAL NOT NULL,
	acquisition_price REAL NOT NULL,
	current_price     REAL NOT NULL,
	market_value      REAL NOT NULL,
	profit_loss       REAL NOT NULL,
	profit_loss_rate  REAL NOT NULL,
	additional_info   TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_portfolio_snapshots_snapshot_at ON portfolio_snapshots(snapshot_at);
CREATE INDEX IF NOT EXISTS idx_portfolio_snapshots_ticker ON portfolio_snapshots(ticker_code);
`

const sqliteColumns = `id, snapshot_at, ticker_code, name, asset_type, account_type, quantity,
	acquisition_price, current_price, market_value, profit_loss, profit_loss_rate, additional_info`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Save(ctx context.Context, p *model.Portfolio) error {
	if p.Len() == 0 {
		zap.L().Debug("sqlite: empty portfolio, nothing to save")
		return nil
	}
	at := snapshotInstant(p.SnapshotDate())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO portfolio_snapshots (`+sqliteColumns+`, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare save")
	}
	defer stmt.Close() //nolint:errcheck

	for i, h := range p.Holdings() {
		r, err := toRecord(uuid.New().String(), at, h)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID, at.UnixMilli(), r.TickerCode, r.Name, r.AssetType, r.AccountType, r.Quantity,
			r.AcquisitionPrice, r.CurrentPrice, r.MarketValue, r.ProfitLoss, r.ProfitLossRate,
			string(r.AdditionalInfo), i,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert holding %s", r.TickerCode)
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit save")
	}
	zap.L().Info("sqlite: saved snapshot",
		zap.Time("snapshot_at", at),
		zap.Int("holdings", p.Len()),
	)
	return nil
}

func (s *SQLiteStore) FindLatest(ctx context.Context) (*model.Portfolio, error) {
	rows, err := s.query(ctx, `SELECT `+sqliteColumns+` FROM portfolio_snapshots
		WHERE snapshot_at = (SELECT MAX(snapshot_at) FROM portfolio_snapshots)
		ORDER BY position`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find latest")
	}
	return single(rows)
}

func (s *SQLiteStore) FindByDate(ctx context.Context, at time.Time) (*model.Portfolio, error) {
	rows, err := s.query(ctx, `SELECT `+sqliteColumns+` FROM portfolio_snapshots
		WHERE snapshot_at = ? ORDER BY position`, snapshotInstant(at).UnixMilli())
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find by date")
	}
	return single(rows)
}

func (s *SQLiteStore) FindByDateRange(ctx context.Context, from, to time.Time) ([]*model.Portfolio, error) {
	rows, err := s.query(ctx, `SELECT `+sqliteColumns+` FROM portfolio_snapshots
		WHERE snapshot_at >= ? AND snapshot_at <= ?
		ORDER BY snapshot_at ASC, position ASC`,
		snapshotInstant(from).UnixMilli(), snapshotInstant(to).UnixMilli())
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find by date range")
	}
	return assemble(rows)
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []record
	for rows.Next() {
		var (
			r    record
			ms   int64
			info string
		)
		if err := rows.Scan(&r.ID, &ms, &r.TickerCode, &r.Name, &r.AssetType, &r.AccountType,
			&r.Quantity, &r.AcquisitionPrice, &r.CurrentPrice, &r.MarketValue, &r.ProfitLoss,
			&r.ProfitLossRate, &info); err != nil {
			return nil, err
		}
		r.SnapshotAt = time.UnixMilli(ms).UTC()
		r.AdditionalInfo = []byte(info)
		out = append(out, r)
	}
	return out, rows.Err()
}
