package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/meridian-labs/demandcast/internal/dataset"
)

// LoadStores reads the store dimension table ordered by id.
func (s *Store) LoadStores(ctx context.Context) ([]dataset.StoreRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT store_id, store_type, size FROM stores ORDER BY store_id`)
	if err != nil {
		return nil, fmt.Errorf("store: load stores: %w", err)
	}
	defer rows.Close()

	var out []dataset.StoreRecord
	for rows.Next() {
		var r dataset.StoreRecord
		var storeType string
		if err := rows.Scan(&r.StoreID, &storeType, &r.Size); err != nil {
			return nil, fmt.Errorf("store: scan store row: %w", err)
		}
		r.StoreType = dataset.StoreType(storeType)
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadSales reads raw sales ordered by (store, dept, date).
func (s *Store) LoadSales(ctx context.Context) ([]dataset.SalesRecord, error) {
	return s.loadSales(ctx, `
		SELECT store_id, dept_id, date, weekly_sales, is_holiday
		FROM raw_sales ORDER BY store_id, dept_id, date`)
}

// LoadSalesSince reads raw sales on or after the given date, ordered by
// (store, dept, date). Used by the anomaly scan and summaries.
func (s *Store) LoadSalesSince(ctx context.Context, since time.Time) ([]dataset.SalesRecord, error) {
	return s.loadSales(ctx, `
		SELECT store_id, dept_id, date, weekly_sales, is_holiday
		FROM raw_sales WHERE date >= $1 ORDER BY store_id, dept_id, date`, since)
}

func (s *Store) loadSales(ctx context.Context, sql string, args ...any) ([]dataset.SalesRecord, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("store: load sales: %w", err)
	}
	defer rows.Close()

	var out []dataset.SalesRecord
	for rows.Next() {
		var r dataset.SalesRecord
		if err := rows.Scan(&r.StoreID, &r.DeptID, &r.Date, &r.WeeklySales, &r.IsHoliday); err != nil {
			return nil, fmt.Errorf("store: scan sales row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadIndicators reads the economic indicator rows ordered by (store, date).
func (s *Store) LoadIndicators(ctx context.Context) ([]dataset.IndicatorRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT store_id, date, temperature, fuel_price,
		       markdown1, markdown2, markdown3, markdown4, markdown5,
		       cpi, unemployment, is_holiday
		FROM features ORDER BY store_id, date`)
	if err != nil {
		return nil, fmt.Errorf("store: load indicators: %w", err)
	}
	defer rows.Close()

	var out []dataset.IndicatorRecord
	for rows.Next() {
		var r dataset.IndicatorRecord
		if err := rows.Scan(&r.StoreID, &r.Date, &r.Temperature, &r.FuelPrice,
			&r.Markdown[0], &r.Markdown[1], &r.Markdown[2], &r.Markdown[3], &r.Markdown[4],
			&r.CPI, &r.Unemployment, &r.IsHoliday); err != nil {
			return nil, fmt.Errorf("store: scan indicator row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const engineeredSelect = `
	SELECT store_id, dept_id, feature_date, weekly_sales,
	       week_of_year, month, quarter, is_month_start, is_month_end, is_holiday,
	       sales_lag_1, sales_lag_2, sales_lag_4, sales_lag_8, sales_lag_52,
	       rolling_mean_4, rolling_mean_13, rolling_mean_52,
	       rolling_std_4, rolling_std_13, rolling_std_52, rolling_min_4, rolling_max_4,
	       temperature, temperature_deviation, fuel_price, fuel_price_change,
	       cpi, cpi_change, unemployment, unemployment_change,
	       total_markdown, has_markdown, markdown_count,
	       store_type_a, store_type_b, store_type_c, size_normalized
	FROM engineered_features`

func scanEngineered(rows pgx.Rows) ([]dataset.FeatureRow, error) {
	var out []dataset.FeatureRow
	for rows.Next() {
		var r dataset.FeatureRow
		if err := rows.Scan(
			&r.StoreID, &r.DeptID, &r.FeatureDate, &r.WeeklySales,
			&r.WeekOfYear, &r.Month, &r.Quarter, &r.IsMonthStart, &r.IsMonthEnd, &r.IsHoliday,
			&r.SalesLag1, &r.SalesLag2, &r.SalesLag4, &r.SalesLag8, &r.SalesLag52,
			&r.RollingMean4, &r.RollingMean13, &r.RollingMean52,
			&r.RollingStd4, &r.RollingStd13, &r.RollingStd52, &r.RollingMin4, &r.RollingMax4,
			&r.Temperature, &r.TemperatureDeviation, &r.FuelPrice, &r.FuelPriceChange,
			&r.CPI, &r.CPIChange, &r.Unemployment, &r.UnemploymentChange,
			&r.TotalMarkdown, &r.HasMarkdown, &r.MarkdownCount,
			&r.StoreTypeA, &r.StoreTypeB, &r.StoreTypeC, &r.SizeNormalized,
		); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadEngineeredFeatures reads the full engineered feature table ordered by
// (store, dept, date).
func (s *Store) LoadEngineeredFeatures(ctx context.Context) ([]dataset.FeatureRow, error) {
	rows, err := s.pool.Query(ctx, engineeredSelect+` ORDER BY store_id, dept_id, feature_date`)
	if err != nil {
		return nil, fmt.Errorf("store: load engineered features: %w", err)
	}
	defer rows.Close()
	return scanEngineered(rows)
}

// LatestFeatures returns the most recent engineered row per (store, dept),
// the extrapolation base for forecast generation.
func (s *Store) LatestFeatures(ctx context.Context) ([]dataset.FeatureRow, error) {
	rows, err := s.pool.Query(ctx, engineeredSelect+` ef
		WHERE feature_date = (
			SELECT MAX(feature_date) FROM engineered_features ef2
			WHERE ef2.store_id = ef.store_id AND ef2.dept_id = ef.dept_id
		)
		ORDER BY store_id, dept_id`)
	if err != nil {
		return nil, fmt.Errorf("store: load latest features: %w", err)
	}
	defer rows.Close()
	return scanEngineered(rows)
}

// LoadForecasts reads the current forecast table ordered by
// (store, dept, date).
func (s *Store) LoadForecasts(ctx context.Context) ([]dataset.ForecastRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT store_id, dept_id, forecast_date,
		       predicted_sales, prediction_lower, prediction_upper,
		       model_name, model_version, confidence_score
		FROM forecasts ORDER BY store_id, dept_id, forecast_date`)
	if err != nil {
		return nil, fmt.Errorf("store: load forecasts: %w", err)
	}
	defer rows.Close()

	var out []dataset.ForecastRow
	for rows.Next() {
		var r dataset.ForecastRow
		if err := rows.Scan(&r.StoreID, &r.DeptID, &r.ForecastDate,
			&r.PredictedSales, &r.PredictionLower, &r.PredictionUpper,
			&r.ModelName, &r.ModelVersion, &r.ConfidenceScore); err != nil {
			return nil, fmt.Errorf("store: scan forecast row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
