package features

import (
	"time"

	"github.com/meridian-labs/demandcast/internal/dataset"
)

// applyTemporal derives calendar-position features from the feature date:
// ISO week of year, month, quarter, and exact month-boundary flags.
func applyTemporal(rows []dataset.FeatureRow) {
	for i := range rows {
		r := &rows[i]
		d := r.FeatureDate

		_, week := d.ISOWeek()
		r.WeekOfYear = week
		r.Month = int(d.Month())
		r.Quarter = (int(d.Month())-1)/3 + 1
		r.IsMonthStart = d.Day() == 1
		r.IsMonthEnd = d.Day() == daysInMonth(d)
	}
}

func daysInMonth(d time.Time) int {
	return time.Date(d.Year(), d.Month()+1, 0, 0, 0, 0, 0, d.Location()).Day()
}
