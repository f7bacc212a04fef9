package dataset

import "math"

// PredictorColumns is the canonical ordered list of model input columns.
// Identifier columns (store_id, dept_id, feature_date, created_at) and the
// target (weekly_sales) are deliberately absent. The order here is the order
// used to build training matrices; a saved model carries its own copy so
// prediction never depends on this list staying frozen.
var PredictorColumns = []string{
	"week_of_year", "month", "quarter", "is_month_start", "is_month_end", "is_holiday",
	"sales_lag_1", "sales_lag_2", "sales_lag_4", "sales_lag_8", "sales_lag_52",
	"rolling_mean_4", "rolling_mean_13", "rolling_mean_52",
	"rolling_std_4", "rolling_std_13", "rolling_min_4", "rolling_max_4",
	"temperature", "temperature_deviation", "fuel_price", "fuel_price_change",
	"cpi", "cpi_change", "unemployment", "unemployment_change",
	"total_markdown", "has_markdown", "markdown_count",
	"store_type_a", "store_type_b", "store_type_c", "size_normalized",
}

func boolVal(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func ptrVal(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

// Predictor returns the numeric value of a predictor column on this row.
// Undefined (null) cells come back as NaN with ok=true; ok=false means the
// column name itself is unknown to this schema, i.e. feature drift between
// the row and the caller's expectation.
func (r *FeatureRow) Predictor(name string) (float64, bool) {
	switch name {
	case "week_of_year":
		return float64(r.WeekOfYear), true
	case "month":
		return float64(r.Month), true
	case "quarter":
		return float64(r.Quarter), true
	case "is_month_start":
		return boolVal(r.IsMonthStart), true
	case "is_month_end":
		return boolVal(r.IsMonthEnd), true
	case "is_holiday":
		return boolVal(r.IsHoliday), true
	case "sales_lag_1":
		return ptrVal(r.SalesLag1), true
	case "sales_lag_2":
		return ptrVal(r.SalesLag2), true
	case "sales_lag_4":
		return ptrVal(r.SalesLag4), true
	case "sales_lag_8":
		return ptrVal(r.SalesLag8), true
	case "sales_lag_52":
		return ptrVal(r.SalesLag52), true
	case "rolling_mean_4":
		return ptrVal(r.RollingMean4), true
	case "rolling_mean_13":
		return ptrVal(r.RollingMean13), true
	case "rolling_mean_52":
		return ptrVal(r.RollingMean52), true
	case "rolling_std_4":
		return ptrVal(r.RollingStd4), true
	case "rolling_std_13":
		return ptrVal(r.RollingStd13), true
	case "rolling_std_52":
		return ptrVal(r.RollingStd52), true
	case "rolling_min_4":
		return ptrVal(r.RollingMin4), true
	case "rolling_max_4":
		return ptrVal(r.RollingMax4), true
	case "temperature":
		return ptrVal(r.Temperature), true
	case "temperature_deviation":
		return ptrVal(r.TemperatureDeviation), true
	case "fuel_price":
		return ptrVal(r.FuelPrice), true
	case "fuel_price_change":
		return ptrVal(r.FuelPriceChange), true
	case "cpi":
		return ptrVal(r.CPI), true
	case "cpi_change":
		return ptrVal(r.CPIChange), true
	case "unemployment":
		return ptrVal(r.Unemployment), true
	case "unemployment_change":
		return ptrVal(r.UnemploymentChange), true
	case "total_markdown":
		return r.TotalMarkdown, true
	case "has_markdown":
		return boolVal(r.HasMarkdown), true
	case "markdown_count":
		return float64(r.MarkdownCount), true
	case "store_type_a":
		return boolVal(r.StoreTypeA), true
	case "store_type_b":
		return boolVal(r.StoreTypeB), true
	case "store_type_c":
		return boolVal(r.StoreTypeC), true
	case "size_normalized":
		return ptrVal(r.SizeNormalized), true
	}
	return 0, false
}

// Vector extracts the row's values for the given column order. Unknown
// columns are reported in missing and filled with zero; null cells surface
// as NaN for the caller to drop or impute.
func (r *FeatureRow) Vector(columns []string) (vec []float64, missing []string) {
	vec = make([]float64, len(columns))
	for i, col := range columns {
		v, ok := r.Predictor(col)
		if !ok {
			missing = append(missing, col)
			continue
		}
		vec[i] = v
	}
	return vec, missing
}
