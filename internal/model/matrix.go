package model

import (
	"math"

	"github.com/meridian-labs/demandcast/internal/dataset"
)

// Matrix is a dense training view over engineered feature rows: predictor
// columns only, identifiers and target excluded from X.
type Matrix struct {
	Columns []string
	X       [][]float64
	Y       []float64
	Holiday []bool
}

// BuildMatrix vectorizes feature rows for training. Rows with any undefined
// predictor cell (null lags and rolling stats on the earliest weeks of short
// series, unmatched indicator joins) are dropped here: short history is data,
// not an error, and training is where the drop decision is made explicit.
// Returns the matrix and how many rows were dropped.
func BuildMatrix(rows []dataset.FeatureRow) (*Matrix, int) {
	m := &Matrix{Columns: dataset.PredictorColumns}
	dropped := 0

rowLoop:
	for i := range rows {
		vec, _ := rows[i].Vector(m.Columns)
		for _, v := range vec {
			if math.IsNaN(v) {
				dropped++
				continue rowLoop
			}
		}
		m.X = append(m.X, vec)
		m.Y = append(m.Y, rows[i].WeeklySales)
		m.Holiday = append(m.Holiday, rows[i].IsHoliday)
	}
	return m, dropped
}

// Len returns the number of usable samples.
func (m *Matrix) Len() int { return len(m.Y) }
