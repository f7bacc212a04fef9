// Package forecast projects engineered features forward to produce the
// multi-week demand forecast. Extrapolation holds lagged, rolling, economic,
// and markdown features at their last observed values and rewrites only the
// calendar-derived fields per future week, a stated approximation rather than
// a re-derivation of true future lags. Each week's own prediction is NOT fed
// back into the lag features across the horizon; parity with the source
// system is kept deliberately and the accuracy cost is documented in
// DESIGN.md rather than silently "fixed".
package forecast

import (
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/meridian-labs/demandcast/internal/dataset"
)

// Predictor is the trained model surface the extrapolator needs: scoring in
// the model's exact feature order, plus identity for stamping forecast rows.
type Predictor interface {
	Predict(x [][]float64) ([]float64, error)
	FeatureNames() []string
	Name() string
	Version() string
}

const (
	// Heuristic uncertainty band: std estimate is 15% of the prediction with
	// a floor of 100, and the band is ±1.96 std. This is an approximation,
	// not a statistically fitted interval.
	bandStdFraction = 0.15
	bandStdFloor    = 100.0
	bandZ           = 1.96

	// Confidence starts at 0.85 for the first future week and decays 0.02
	// per week of horizon distance. No floor: a long enough horizon may push
	// it negative, which is surfaced as a data-quality signal instead of
	// being clamped away.
	confidenceStart = 0.85
	confidenceDecay = 0.02
)

// Extrapolator turns the latest feature row of each series into point
// forecasts with heuristic confidence bounds.
type Extrapolator struct {
	log *zap.SugaredLogger
}

// NewExtrapolator creates an extrapolator.
func NewExtrapolator(log *zap.SugaredLogger) *Extrapolator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Extrapolator{log: log}
}

// Extrapolate produces horizonWeeks of weekly forecasts beyond the latest
// observed feature date for every series in latest. All returned rows carry
// the predictor's model name and version. latest must hold the most recent
// engineered row per (store, dept); an empty input means the feature pipeline
// has not produced rows yet and fails with an actionable error.
func (e *Extrapolator) Extrapolate(latest []dataset.FeatureRow, p Predictor, horizonWeeks int) ([]dataset.ForecastRow, error) {
	if len(latest) == 0 {
		return nil, fmt.Errorf("forecast: no engineered features to extrapolate from; run the feature engineering stage first")
	}
	if horizonWeeks < 1 {
		return nil, fmt.Errorf("forecast: horizonWeeks must be >= 1, got %d", horizonWeeks)
	}

	columns := p.FeatureNames()
	if len(columns) == 0 {
		return nil, fmt.Errorf("forecast: predictor reports no feature names; artifact missing feature ordering")
	}

	// Horizon dates are anchored on the newest date across all series so one
	// generation run covers a single contiguous window.
	var lastDate time.Time
	for i := range latest {
		if latest[i].FeatureDate.After(lastDate) {
			lastDate = latest[i].FeatureDate
		}
	}
	futureDates := make([]time.Time, horizonWeeks)
	for w := 0; w < horizonWeeks; w++ {
		futureDates[w] = lastDate.AddDate(0, 0, 7*(w+1))
	}

	series := make([]dataset.FeatureRow, len(latest))
	copy(series, latest)
	sort.SliceStable(series, func(i, j int) bool {
		a, b := &series[i], &series[j]
		if a.StoreID != b.StoreID {
			return a.StoreID < b.StoreID
		}
		return a.DeptID < b.DeptID
	})

	warned := make(map[string]bool)
	vectors := make([][]float64, 0, len(series)*horizonWeeks)
	rows := make([]dataset.ForecastRow, 0, len(series)*horizonWeeks)

	for i := range series {
		for w, date := range futureDates {
			base := series[i] // copy; lag/rolling/economic/markdown held fixed
			setForecastCalendar(&base, date)

			vec, missing := base.Vector(columns)
			for _, col := range missing {
				if !warned[col] {
					warned[col] = true
					e.log.Warnw("model expects feature absent from engineered rows, filling with zero",
						"feature", col)
				}
			}
			for j, v := range vec {
				if math.IsNaN(v) {
					if !warned[columns[j]] {
						warned[columns[j]] = true
						e.log.Warnw("latest feature row has no value for feature, filling with zero",
							"feature", columns[j])
					}
					vec[j] = 0
				}
			}

			vectors = append(vectors, vec)
			rows = append(rows, dataset.ForecastRow{
				StoreID:         base.StoreID,
				DeptID:          base.DeptID,
				ForecastDate:    date,
				ModelName:       p.Name(),
				ModelVersion:    p.Version(),
				ConfidenceScore: round4(confidenceStart - confidenceDecay*float64(w)),
			})
		}
	}

	preds, err := p.Predict(vectors)
	if err != nil {
		return nil, fmt.Errorf("forecast: predict: %w", err)
	}

	for i := range rows {
		pred := math.Max(preds[i], 0) // sales cannot be negative
		std := math.Max(bandStdFraction*pred, bandStdFloor)
		rows[i].PredictedSales = round2(pred)
		rows[i].PredictionLower = round2(math.Max(pred-bandZ*std, 0))
		rows[i].PredictionUpper = round2(pred + bandZ*std)
	}

	e.log.Infow("forecast generation complete",
		"series", len(series),
		"horizon_weeks", horizonWeeks,
		"rows", len(rows),
		"first_week", futureDates[0].Format("2006-01-02"),
		"last_week", futureDates[horizonWeeks-1].Format("2006-01-02"),
	)
	return rows, nil
}

// setForecastCalendar rewrites only the calendar-derived fields of the base
// row to match the forecast date. The boundary flags use the scoring-time
// heuristics of the source system (first/last week of month) rather than the
// exact day-one/last-day flags the pipeline computes.
func setForecastCalendar(r *dataset.FeatureRow, date time.Time) {
	r.FeatureDate = date
	_, week := date.ISOWeek()
	r.WeekOfYear = week
	r.Month = int(date.Month())
	r.Quarter = (int(date.Month())-1)/3 + 1
	r.IsMonthStart = date.Day() <= 7
	r.IsMonthEnd = date.Day() >= 24
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
