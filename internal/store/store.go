// Package store is the Postgres persistence layer behind the pipeline. It is
// an explicit, passed-in handle with scoped acquisition (opened before a
// batch, closed after, including on failure paths), never a process-wide
// singleton. All SQL lives here; the rest of the pipeline trades in typed
// records.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ErrSchemaMismatch marks reads or writes where the engineered-feature
// columns the code requires are missing from the database. Rows are never
// silently dropped; the mismatch fails loudly.
var ErrSchemaMismatch = errors.New("store: engineered feature schema mismatch")

// Store wraps a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
	log  *zap.SugaredLogger
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string, log *zap.SugaredLogger) (*Store, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

// Close releases the pool. Safe to call on a nil receiver's zero value path.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS stores (
	store_id   INTEGER PRIMARY KEY,
	store_type VARCHAR(1) NOT NULL,
	size       DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS raw_sales (
	store_id     INTEGER NOT NULL,
	dept_id      INTEGER NOT NULL,
	date         DATE NOT NULL,
	weekly_sales DOUBLE PRECISION NOT NULL,
	is_holiday   BOOLEAN NOT NULL,
	UNIQUE (store_id, dept_id, date)
);
CREATE INDEX IF NOT EXISTS idx_raw_sales_date ON raw_sales (date);

CREATE TABLE IF NOT EXISTS features (
	store_id     INTEGER NOT NULL,
	date         DATE NOT NULL,
	temperature  DOUBLE PRECISION,
	fuel_price   DOUBLE PRECISION,
	markdown1    DOUBLE PRECISION,
	markdown2    DOUBLE PRECISION,
	markdown3    DOUBLE PRECISION,
	markdown4    DOUBLE PRECISION,
	markdown5    DOUBLE PRECISION,
	cpi          DOUBLE PRECISION,
	unemployment DOUBLE PRECISION,
	is_holiday   BOOLEAN NOT NULL,
	UNIQUE (store_id, date)
);

CREATE TABLE IF NOT EXISTS engineered_features (
	store_id              INTEGER NOT NULL,
	dept_id               INTEGER NOT NULL,
	feature_date          DATE NOT NULL,
	weekly_sales          DOUBLE PRECISION NOT NULL,
	week_of_year          INTEGER NOT NULL,
	month                 INTEGER NOT NULL,
	quarter               INTEGER NOT NULL,
	is_month_start        BOOLEAN NOT NULL,
	is_month_end          BOOLEAN NOT NULL,
	is_holiday            BOOLEAN NOT NULL,
	sales_lag_1           DOUBLE PRECISION,
	sales_lag_2           DOUBLE PRECISION,
	sales_lag_4           DOUBLE PRECISION,
	sales_lag_8           DOUBLE PRECISION,
	sales_lag_52          DOUBLE PRECISION,
	rolling_mean_4        DOUBLE PRECISION,
	rolling_mean_13       DOUBLE PRECISION,
	rolling_mean_52       DOUBLE PRECISION,
	rolling_std_4         DOUBLE PRECISION,
	rolling_std_13        DOUBLE PRECISION,
	rolling_std_52        DOUBLE PRECISION,
	rolling_min_4         DOUBLE PRECISION,
	rolling_max_4         DOUBLE PRECISION,
	temperature           DOUBLE PRECISION,
	temperature_deviation DOUBLE PRECISION,
	fuel_price            DOUBLE PRECISION,
	fuel_price_change     DOUBLE PRECISION,
	cpi                   DOUBLE PRECISION,
	cpi_change            DOUBLE PRECISION,
	unemployment          DOUBLE PRECISION,
	unemployment_change   DOUBLE PRECISION,
	total_markdown        DOUBLE PRECISION NOT NULL,
	has_markdown          BOOLEAN NOT NULL,
	markdown_count        INTEGER NOT NULL,
	store_type_a          BOOLEAN NOT NULL,
	store_type_b          BOOLEAN NOT NULL,
	store_type_c          BOOLEAN NOT NULL,
	size_normalized       DOUBLE PRECISION,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (store_id, dept_id, feature_date)
);
CREATE INDEX IF NOT EXISTS idx_engineered_features_date ON engineered_features (feature_date);

CREATE TABLE IF NOT EXISTS forecasts (
	store_id         INTEGER NOT NULL,
	dept_id          INTEGER NOT NULL,
	forecast_date    DATE NOT NULL,
	predicted_sales  DOUBLE PRECISION NOT NULL,
	prediction_lower DOUBLE PRECISION NOT NULL,
	prediction_upper DOUBLE PRECISION NOT NULL,
	model_name       TEXT NOT NULL,
	model_version    TEXT NOT NULL,
	confidence_score DOUBLE PRECISION NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_forecasts_date ON forecasts (forecast_date);

CREATE TABLE IF NOT EXISTS model_metadata (
	run_id             TEXT PRIMARY KEY,
	model_name         TEXT NOT NULL,
	model_version      TEXT NOT NULL,
	wmae               DOUBLE PRECISION NOT NULL,
	mae                DOUBLE PRECISION NOT NULL,
	rmse               DOUBLE PRECISION NOT NULL,
	training_date      TIMESTAMPTZ NOT NULL,
	parameters         JSONB NOT NULL,
	feature_importance JSONB NOT NULL
);
`

// Migrate creates the schema. Idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	s.log.Infow("schema migrated")
	return nil
}
