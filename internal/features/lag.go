package features

import "github.com/meridian-labs/demandcast/internal/dataset"

// applyLags shifts weekly_sales backward by each configured offset within
// every (store, dept) partition. lag_k on row i is the target k rows earlier
// in date order; rows with fewer than k predecessors get nil. Values from a
// different partition can never leak in because the shift runs per partition.
func applyLags(rows []dataset.FeatureRow) {
	sortRows(rows)

	for _, part := range seriesPartitions(rows) {
		lo, hi := part[0], part[1]
		for _, k := range Lags {
			for i := lo; i < hi; i++ {
				if i-k < lo {
					continue // leading rows stay nil
				}
				v := rows[i-k].WeeklySales
				setLag(&rows[i], k, &v)
			}
		}
	}
}

func setLag(r *dataset.FeatureRow, k int, v *float64) {
	switch k {
	case 1:
		r.SalesLag1 = v
	case 2:
		r.SalesLag2 = v
	case 4:
		r.SalesLag4 = v
	case 8:
		r.SalesLag8 = v
	case 52:
		r.SalesLag52 = v
	}
}
