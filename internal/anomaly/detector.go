// Package anomaly flags weekly sales observations that deviate sharply from
// the dataset mean. The scan is a plain z-score over the pooled observations:
// it feeds the anomaly insight agent with candidates to explain, it does not
// adjudicate them.
package anomaly

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/meridian-labs/demandcast/internal/dataset"
)

// DefaultThreshold is the z-score above which an observation is reported.
const DefaultThreshold = 3.0

// maxReported caps the result so downstream prompts stay bounded; the scan
// keeps the highest-scoring observations.
const maxReported = 20

// Anomaly is one flagged weekly observation.
type Anomaly struct {
	StoreID   int       `json:"store_id"`
	DeptID    int       `json:"dept_id"`
	Date      time.Time `json:"date"`
	Sales     float64   `json:"sales"`
	ZScore    float64   `json:"z_score"`
	Deviation float64   `json:"deviation"`
}

// Result is the outcome of one scan.
type Result struct {
	Anomalies []Anomaly `json:"anomalies"`
	Total     int       `json:"total"`
	Threshold float64   `json:"threshold"`
	Mean      float64   `json:"mean"`
	Std       float64   `json:"std"`
}

// Detector scores observations against the pooled distribution.
type Detector struct {
	threshold float64
}

// NewDetector creates a detector. A non-positive threshold falls back to
// DefaultThreshold.
func NewDetector(threshold float64) *Detector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Detector{threshold: threshold}
}

// Detect scans the given sales. Fewer than two observations, or a degenerate
// distribution with zero variance, yields an empty result rather than an
// error: there is nothing to deviate from.
func (d *Detector) Detect(records []dataset.SalesRecord) Result {
	res := Result{Threshold: d.threshold}
	if len(records) < 2 {
		return res
	}

	vals := make([]float64, len(records))
	for i, r := range records {
		vals[i] = r.WeeklySales
	}
	res.Mean, res.Std = stat.MeanStdDev(vals, nil)
	if res.Std == 0 {
		return res
	}

	var found []Anomaly
	for i, r := range records {
		z := (vals[i] - res.Mean) / res.Std
		if z < 0 {
			z = -z
		}
		if z <= d.threshold {
			continue
		}
		found = append(found, Anomaly{
			StoreID:   r.StoreID,
			DeptID:    r.DeptID,
			Date:      r.Date,
			Sales:     r.WeeklySales,
			ZScore:    z,
			Deviation: z * res.Std,
		})
	}

	res.Total = len(found)
	sort.Slice(found, func(i, j int) bool { return found[i].ZScore > found[j].ZScore })
	if len(found) > maxReported {
		found = found[:maxReported]
	}
	res.Anomalies = found
	return res
}
