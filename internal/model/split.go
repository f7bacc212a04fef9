package model

import (
	"fmt"
	"sort"
	"time"

	"github.com/meridian-labs/demandcast/internal/dataset"
)

// Split partitions feature rows into train and validation sets by a date
// cutoff: cutoff = max(feature_date) - valWeeks weeks, train strictly before,
// validation on or after. The split is never random; temporal ordering is
// the leakage guarantee. Rows are sorted by feature_date before the cutoff is
// computed and both partitions come back date-sorted for downstream windowing.
//
// A valWeeks that swallows the entire date span empties the train partition;
// that is a caller error and fails with an EmptyDatasetError rather than
// silently "working".
func Split(rows []dataset.FeatureRow, valWeeks int) (train, val []dataset.FeatureRow, err error) {
	if len(rows) == 0 {
		return nil, nil, &EmptyDatasetError{Train: 0, Val: 0}
	}
	if valWeeks < 1 {
		return nil, nil, fmt.Errorf("model: valWeeks must be >= 1, got %d", valWeeks)
	}

	sorted := make([]dataset.FeatureRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].FeatureDate.Before(sorted[j].FeatureDate)
	})

	maxDate := sorted[len(sorted)-1].FeatureDate
	cutoff := maxDate.AddDate(0, 0, -7*valWeeks)

	for _, r := range sorted {
		if r.FeatureDate.Before(cutoff) {
			train = append(train, r)
		} else {
			val = append(val, r)
		}
	}

	if len(train) == 0 {
		return nil, nil, &EmptyDatasetError{Train: 0, Val: len(val)}
	}
	return train, val, nil
}

// SplitCutoff reports the cutoff date a Split over the rows would use.
func SplitCutoff(rows []dataset.FeatureRow, valWeeks int) time.Time {
	var maxDate time.Time
	for _, r := range rows {
		if r.FeatureDate.After(maxDate) {
			maxDate = r.FeatureDate
		}
	}
	return maxDate.AddDate(0, 0, -7*valWeeks)
}
