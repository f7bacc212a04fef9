package features

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/meridian-labs/demandcast/internal/dataset"
)

// applyRolling computes trailing-window statistics of weekly_sales within
// each (store, dept) partition: mean and sample standard deviation for every
// configured window, plus min/max for the smallest window. A window needs at
// least one observation, so the first row of a partition has a defined mean
// (itself) and an undefined std: sample std over one point has no meaning
// and stays nil rather than becoming zero.
func applyRolling(rows []dataset.FeatureRow) {
	sortRows(rows)

	minWindow := Windows[0]
	for _, w := range Windows {
		if w < minWindow {
			minWindow = w
		}
	}

	for _, part := range seriesPartitions(rows) {
		lo, hi := part[0], part[1]
		for _, w := range Windows {
			for i := lo; i < hi; i++ {
				from := i - w + 1
				if from < lo {
					from = lo
				}
				window := make([]float64, 0, w)
				for j := from; j <= i; j++ {
					window = append(window, rows[j].WeeklySales)
				}

				mean, std := stat.MeanStdDev(window, nil)
				setRollingMean(&rows[i], w, &mean)
				if len(window) > 1 && !math.IsNaN(std) {
					setRollingStd(&rows[i], w, &std)
				}

				if w == minWindow {
					mn, mx := window[0], window[0]
					for _, v := range window[1:] {
						mn = math.Min(mn, v)
						mx = math.Max(mx, v)
					}
					rows[i].RollingMin4 = ptr(mn)
					rows[i].RollingMax4 = ptr(mx)
				}
			}
		}
	}
}

func setRollingMean(r *dataset.FeatureRow, w int, v *float64) {
	switch w {
	case 4:
		r.RollingMean4 = v
	case 13:
		r.RollingMean13 = v
	case 52:
		r.RollingMean52 = v
	}
}

func setRollingStd(r *dataset.FeatureRow, w int, v *float64) {
	switch w {
	case 4:
		r.RollingStd4 = v
	case 13:
		r.RollingStd13 = v
	case 52:
		r.RollingStd52 = v
	}
}
