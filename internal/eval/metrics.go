// Package eval computes forecast accuracy metrics. The primary objective is
// weighted mean absolute error with holiday weeks weighted 5x, reflecting the
// business cost of holiday-week misses; MAE, RMSE, and MAPE are reported
// alongside it.
package eval

import (
	"errors"
	"fmt"
	"math"
)

// HolidayWeight is the error weight applied to holiday weeks; non-holiday
// weeks weigh 1.
const HolidayWeight = 5.0

// ErrEmptyInput is returned when a metric is asked to evaluate zero rows.
// Per-element weights are always >= 1, so the only degenerate denominator is
// the empty input; it is guarded explicitly rather than surfacing as NaN.
var ErrEmptyInput = errors.New("eval: empty input")

// Metrics bundles all evaluation metrics for one prediction set.
type Metrics struct {
	WMAE float64 `json:"wmae"`
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
	MAPE float64 `json:"mape"`
}

// WMAE computes the holiday-weighted mean absolute error:
//
//	wmae = sum(w_i * |y_i - yhat_i|) / sum(w_i), w_i = 5 if holiday else 1
//
// All three slices must have equal length.
func WMAE(yTrue, yPred []float64, isHoliday []bool) (float64, error) {
	if len(yTrue) != len(yPred) || len(yTrue) != len(isHoliday) {
		return 0, fmt.Errorf("eval: length mismatch: yTrue=%d yPred=%d isHoliday=%d",
			len(yTrue), len(yPred), len(isHoliday))
	}
	if len(yTrue) == 0 {
		return 0, ErrEmptyInput
	}

	var weighted, total float64
	for i := range yTrue {
		w := 1.0
		if isHoliday[i] {
			w = HolidayWeight
		}
		weighted += w * math.Abs(yTrue[i]-yPred[i])
		total += w
	}
	return weighted / total, nil
}

// MAE computes mean absolute error.
func MAE(yTrue, yPred []float64) (float64, error) {
	if len(yTrue) != len(yPred) {
		return 0, fmt.Errorf("eval: length mismatch: yTrue=%d yPred=%d", len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return 0, ErrEmptyInput
	}
	var sum float64
	for i := range yTrue {
		sum += math.Abs(yTrue[i] - yPred[i])
	}
	return sum / float64(len(yTrue)), nil
}

// RMSE computes root mean squared error.
func RMSE(yTrue, yPred []float64) (float64, error) {
	if len(yTrue) != len(yPred) {
		return 0, fmt.Errorf("eval: length mismatch: yTrue=%d yPred=%d", len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return 0, ErrEmptyInput
	}
	var sum float64
	for i := range yTrue {
		d := yTrue[i] - yPred[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(yTrue))), nil
}

// MAPE computes mean absolute percentage error as a percentage. Rows whose
// true value is exactly zero are excluded to avoid division by zero; this
// silently shrinks the effective sample, so a set that is entirely zero-true
// rows returns ErrEmptyInput rather than a number.
func MAPE(yTrue, yPred []float64) (float64, error) {
	if len(yTrue) != len(yPred) {
		return 0, fmt.Errorf("eval: length mismatch: yTrue=%d yPred=%d", len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return 0, ErrEmptyInput
	}
	var sum float64
	n := 0
	for i := range yTrue {
		if yTrue[i] == 0 {
			continue
		}
		sum += math.Abs((yTrue[i] - yPred[i]) / yTrue[i])
		n++
	}
	if n == 0 {
		return 0, ErrEmptyInput
	}
	return sum / float64(n) * 100, nil
}

// Evaluate computes the full metric set for one prediction run. A MAPE that
// cannot be computed (all true values zero) is reported as zero; the other
// metrics are still meaningful.
func Evaluate(yTrue, yPred []float64, isHoliday []bool) (Metrics, error) {
	wmae, err := WMAE(yTrue, yPred, isHoliday)
	if err != nil {
		return Metrics{}, err
	}
	mae, err := MAE(yTrue, yPred)
	if err != nil {
		return Metrics{}, err
	}
	rmse, err := RMSE(yTrue, yPred)
	if err != nil {
		return Metrics{}, err
	}
	mape, err := MAPE(yTrue, yPred)
	if err != nil && !errors.Is(err, ErrEmptyInput) {
		return Metrics{}, err
	}
	return Metrics{WMAE: wmae, MAE: mae, RMSE: rmse, MAPE: mape}, nil
}
