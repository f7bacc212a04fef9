// Package dataset defines the record types flowing through the forecasting
// pipeline: raw inputs (sales, indicators, stores), engineered feature rows,
// forecast rows, and training-run metadata.
package dataset

import (
	"time"
)

// StoreType is the store category from the static dimension table.
type StoreType string

const (
	StoreTypeA StoreType = "A"
	StoreTypeB StoreType = "B"
	StoreTypeC StoreType = "C"
)

// Valid reports whether t is one of the known store categories.
func (t StoreType) Valid() bool {
	switch t {
	case StoreTypeA, StoreTypeB, StoreTypeC:
		return true
	}
	return false
}

// SalesRecord is one aggregated week of sales for one store/department.
// Immutable once ingested.
type SalesRecord struct {
	StoreID     int       `json:"store_id"`
	DeptID      int       `json:"dept_id"`
	Date        time.Time `json:"date"`
	WeeklySales float64   `json:"weekly_sales"`
	IsHoliday   bool      `json:"is_holiday"`
}

// IndicatorRecord is one week of exogenous indicators for one store.
// Markdown columns may be absent, meaning "no active promotion"; absence is
// treated as zero downstream, never as a reason to drop the row. CPI and
// unemployment are reported with a lag and are absent on recent weeks.
type IndicatorRecord struct {
	StoreID      int         `json:"store_id"`
	Date         time.Time   `json:"date"`
	Temperature  *float64    `json:"temperature"`
	FuelPrice    *float64    `json:"fuel_price"`
	Markdown     [5]*float64 `json:"markdown"`
	CPI          *float64    `json:"cpi"`
	Unemployment *float64    `json:"unemployment"`
	IsHoliday    bool        `json:"is_holiday"`
}

// StoreRecord is the static store dimension row.
type StoreRecord struct {
	StoreID   int       `json:"store_id"`
	StoreType StoreType `json:"store_type"`
	Size      float64   `json:"size"`
}

// FeatureRow is one engineered row per (store, dept, week). Derived values
// that can be undefined on short history (lags, rolling stats, first
// differences) are pointers; nil means the value does not exist for that row,
// which is expected on the earliest rows of a partition and is left to
// training consumers to drop or impute.
type FeatureRow struct {
	StoreID     int       `json:"store_id"`
	DeptID      int       `json:"dept_id"`
	FeatureDate time.Time `json:"feature_date"`
	WeeklySales float64   `json:"weekly_sales"`

	// Calendar position.
	WeekOfYear   int  `json:"week_of_year"`
	Month        int  `json:"month"`
	Quarter      int  `json:"quarter"`
	IsMonthStart bool `json:"is_month_start"`
	IsMonthEnd   bool `json:"is_month_end"`
	IsHoliday    bool `json:"is_holiday"`

	// Lagged target, computed strictly within the (store, dept) partition.
	SalesLag1  *float64 `json:"sales_lag_1"`
	SalesLag2  *float64 `json:"sales_lag_2"`
	SalesLag4  *float64 `json:"sales_lag_4"`
	SalesLag8  *float64 `json:"sales_lag_8"`
	SalesLag52 *float64 `json:"sales_lag_52"`

	// Trailing-window statistics over the target.
	RollingMean4  *float64 `json:"rolling_mean_4"`
	RollingMean13 *float64 `json:"rolling_mean_13"`
	RollingMean52 *float64 `json:"rolling_mean_52"`
	RollingStd4   *float64 `json:"rolling_std_4"`
	RollingStd13  *float64 `json:"rolling_std_13"`
	RollingStd52  *float64 `json:"rolling_std_52"`
	RollingMin4   *float64 `json:"rolling_min_4"`
	RollingMax4   *float64 `json:"rolling_max_4"`

	// Economic indicators (nil when the indicator join found no row) and
	// their per-store derivations.
	Temperature          *float64 `json:"temperature"`
	TemperatureDeviation *float64 `json:"temperature_deviation"`
	FuelPrice            *float64 `json:"fuel_price"`
	FuelPriceChange      *float64 `json:"fuel_price_change"`
	CPI                  *float64 `json:"cpi"`
	CPIChange            *float64 `json:"cpi_change"`
	Unemployment         *float64 `json:"unemployment"`
	UnemploymentChange   *float64 `json:"unemployment_change"`

	// Raw markdown values carried from the indicator join for the markdown
	// builder; not persisted on the engineered row.
	RawMarkdowns [5]*float64 `json:"-"`

	// Markdown aggregates. Always defined: nulls count as zero.
	TotalMarkdown float64 `json:"total_markdown"`
	HasMarkdown   bool    `json:"has_markdown"`
	MarkdownCount int     `json:"markdown_count"`

	// Store metadata features.
	StoreTypeA     bool     `json:"store_type_a"`
	StoreTypeB     bool     `json:"store_type_b"`
	StoreTypeC     bool     `json:"store_type_c"`
	SizeNormalized *float64 `json:"size_normalized"`
}

// SeriesKey identifies one (store, department) time series.
type SeriesKey struct {
	StoreID int
	DeptID  int
}

// Key returns the series this row belongs to.
func (r *FeatureRow) Key() SeriesKey {
	return SeriesKey{StoreID: r.StoreID, DeptID: r.DeptID}
}

// ForecastRow is one predicted week for one store/department. A generation
// run replaces all prior forecasts wholesale; rows never append across runs.
type ForecastRow struct {
	StoreID         int       `json:"store_id"`
	DeptID          int       `json:"dept_id"`
	ForecastDate    time.Time `json:"forecast_date"`
	PredictedSales  float64   `json:"predicted_sales"`
	PredictionLower float64   `json:"prediction_lower"`
	PredictionUpper float64   `json:"prediction_upper"`
	ModelName       string    `json:"model_name"`
	ModelVersion    string    `json:"model_version"`
	ConfidenceScore float64   `json:"confidence_score"`
}

// RunMetadata is the append-only record of one training run. Persisting it is
// a side channel of training: its failure never invalidates the trained model.
type RunMetadata struct {
	RunID             string            `json:"run_id"`
	ModelName         string            `json:"model_name"`
	ModelVersion      string            `json:"model_version"`
	WMAE              float64           `json:"wmae"`
	MAE               float64           `json:"mae"`
	RMSE              float64           `json:"rmse"`
	TrainingDate      time.Time         `json:"training_date"`
	Parameters        map[string]any    `json:"parameters"`
	FeatureImportance []ImportanceEntry `json:"feature_importance"`
}

// ImportanceEntry is one feature's share of total split gain, normalized so
// the entries of a model sum to 100.
type ImportanceEntry struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}
