package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/meridian-labs/demandcast/internal/dataset"
)

// InsertStores bulk-loads the store dimension table.
func (s *Store) InsertStores(ctx context.Context, records []dataset.StoreRecord) (int64, error) {
	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = []any{r.StoreID, string(r.StoreType), r.Size}
	}
	n, err := s.pool.CopyFrom(ctx, pgx.Identifier{"stores"},
		[]string{"store_id", "store_type", "size"}, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("store: insert stores: %w", err)
	}
	return n, nil
}

// InsertSales bulk-loads raw weekly sales.
func (s *Store) InsertSales(ctx context.Context, records []dataset.SalesRecord) (int64, error) {
	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = []any{r.StoreID, r.DeptID, r.Date, r.WeeklySales, r.IsHoliday}
	}
	n, err := s.pool.CopyFrom(ctx, pgx.Identifier{"raw_sales"},
		[]string{"store_id", "dept_id", "date", "weekly_sales", "is_holiday"},
		pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("store: insert sales: %w", err)
	}
	return n, nil
}

// InsertIndicators bulk-loads the weekly economic indicator rows.
func (s *Store) InsertIndicators(ctx context.Context, records []dataset.IndicatorRecord) (int64, error) {
	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = []any{
			r.StoreID, r.Date, r.Temperature, r.FuelPrice,
			r.Markdown[0], r.Markdown[1], r.Markdown[2], r.Markdown[3], r.Markdown[4],
			r.CPI, r.Unemployment, r.IsHoliday,
		}
	}
	n, err := s.pool.CopyFrom(ctx, pgx.Identifier{"features"},
		[]string{"store_id", "date", "temperature", "fuel_price",
			"markdown1", "markdown2", "markdown3", "markdown4", "markdown5",
			"cpi", "unemployment", "is_holiday"},
		pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("store: insert indicators: %w", err)
	}
	return n, nil
}

var engineeredColumns = []string{
	"store_id", "dept_id", "feature_date", "weekly_sales",
	"week_of_year", "month", "quarter", "is_month_start", "is_month_end", "is_holiday",
	"sales_lag_1", "sales_lag_2", "sales_lag_4", "sales_lag_8", "sales_lag_52",
	"rolling_mean_4", "rolling_mean_13", "rolling_mean_52",
	"rolling_std_4", "rolling_std_13", "rolling_std_52", "rolling_min_4", "rolling_max_4",
	"temperature", "temperature_deviation", "fuel_price", "fuel_price_change",
	"cpi", "cpi_change", "unemployment", "unemployment_change",
	"total_markdown", "has_markdown", "markdown_count",
	"store_type_a", "store_type_b", "store_type_c", "size_normalized",
}

func engineeredValues(r *dataset.FeatureRow) []any {
	return []any{
		r.StoreID, r.DeptID, r.FeatureDate, r.WeeklySales,
		r.WeekOfYear, r.Month, r.Quarter, r.IsMonthStart, r.IsMonthEnd, r.IsHoliday,
		r.SalesLag1, r.SalesLag2, r.SalesLag4, r.SalesLag8, r.SalesLag52,
		r.RollingMean4, r.RollingMean13, r.RollingMean52,
		r.RollingStd4, r.RollingStd13, r.RollingStd52, r.RollingMin4, r.RollingMax4,
		r.Temperature, r.TemperatureDeviation, r.FuelPrice, r.FuelPriceChange,
		r.CPI, r.CPIChange, r.Unemployment, r.UnemploymentChange,
		r.TotalMarkdown, r.HasMarkdown, r.MarkdownCount,
		r.StoreTypeA, r.StoreTypeB, r.StoreTypeC, r.SizeNormalized,
	}
}

// ReplaceEngineeredFeatures replaces the engineered feature table with the
// given rows in a single transaction, so readers never observe a
// half-updated table.
func (s *Store) ReplaceEngineeredFeatures(ctx context.Context, rows []dataset.FeatureRow) error {
	if len(engineeredColumns) != len(engineeredValues(&dataset.FeatureRow{})) {
		return fmt.Errorf("%w: %d columns vs %d values", ErrSchemaMismatch,
			len(engineeredColumns), len(engineeredValues(&dataset.FeatureRow{})))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin replace engineered features: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM engineered_features`); err != nil {
		return fmt.Errorf("store: clear engineered features: %w", err)
	}

	src := make([][]any, len(rows))
	for i := range rows {
		src[i] = engineeredValues(&rows[i])
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"engineered_features"}, engineeredColumns, pgx.CopyFromRows(src)); err != nil {
		return fmt.Errorf("store: copy engineered features: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: commit engineered features: %w", err)
	}
	s.log.Infow("engineered features replaced", "rows", len(rows))
	return nil
}

// ReplaceForecasts atomically replaces all forecasts with the rows of one
// generation run. Delete and insert share a transaction: a partial overwrite
// must never be visible to readers, and concurrent generation runs are the
// caller's responsibility to serialize.
func (s *Store) ReplaceForecasts(ctx context.Context, rows []dataset.ForecastRow) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin replace forecasts: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM forecasts`); err != nil {
		return fmt.Errorf("store: clear forecasts: %w", err)
	}

	src := make([][]any, len(rows))
	for i, r := range rows {
		src[i] = []any{
			r.StoreID, r.DeptID, r.ForecastDate,
			r.PredictedSales, r.PredictionLower, r.PredictionUpper,
			r.ModelName, r.ModelVersion, r.ConfidenceScore,
		}
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"forecasts"},
		[]string{"store_id", "dept_id", "forecast_date",
			"predicted_sales", "prediction_lower", "prediction_upper",
			"model_name", "model_version", "confidence_score"},
		pgx.CopyFromRows(src)); err != nil {
		return fmt.Errorf("store: copy forecasts: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: commit forecasts: %w", err)
	}
	s.log.Infow("forecasts replaced", "rows", len(rows))
	return nil
}

// AppendRunMetadata appends one row to the append-only training-run log.
// Implements model.MetadataSink.
func (s *Store) AppendRunMetadata(ctx context.Context, meta dataset.RunMetadata) error {
	params, err := json.Marshal(meta.Parameters)
	if err != nil {
		return fmt.Errorf("store: marshal run parameters: %w", err)
	}
	importance, err := json.Marshal(meta.FeatureImportance)
	if err != nil {
		return fmt.Errorf("store: marshal feature importance: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO model_metadata
			(run_id, model_name, model_version, wmae, mae, rmse, training_date, parameters, feature_importance)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		meta.RunID, meta.ModelName, meta.ModelVersion,
		meta.WMAE, meta.MAE, meta.RMSE, meta.TrainingDate, params, importance)
	if err != nil {
		return fmt.Errorf("store: append run metadata: %w", err)
	}
	return nil
}
