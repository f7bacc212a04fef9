package features

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/meridian-labs/demandcast/internal/dataset"
)

// applyStore joins store metadata onto the rows: one-hot encoded store type
// and z-normalized size. Normalization statistics are fit over the merged
// department-expanded rows, so a store's weight in the scaler scales with the
// number of rows it contributes. Rows referencing an unknown store keep
// zero-value type flags and a nil normalized size, matching left-join
// semantics.
func applyStore(rows []dataset.FeatureRow, stores []dataset.StoreRecord) error {
	if len(stores) == 0 {
		return fmt.Errorf("features: store dimension table is empty")
	}

	byID := make(map[int]dataset.StoreRecord, len(stores))
	for _, s := range stores {
		byID[s.StoreID] = s
	}

	sizes := make([]float64, 0, len(rows))
	for i := range rows {
		if s, ok := byID[rows[i].StoreID]; ok {
			sizes = append(sizes, s.Size)
		}
	}
	var meanSize, stdSize float64
	if len(sizes) > 0 {
		meanSize, stdSize = stat.MeanStdDev(sizes, nil)
	}

	for i := range rows {
		r := &rows[i]
		s, ok := byID[r.StoreID]
		if !ok {
			continue
		}
		r.StoreTypeA = s.StoreType == dataset.StoreTypeA
		r.StoreTypeB = s.StoreType == dataset.StoreTypeB
		r.StoreTypeC = s.StoreType == dataset.StoreTypeC
		if stdSize > 0 {
			r.SizeNormalized = ptr((s.Size - meanSize) / stdSize)
		}
	}
	return nil
}
