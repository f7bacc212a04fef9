// Package features engineers model-ready rows from raw sales, economic
// indicators, and store metadata. Builders run in a fixed order because later
// builders read columns earlier ones created: temporal, lag, rolling,
// economic, markdown, store. Lag, rolling, and economic features are computed
// strictly within their partition sorted by date; the sort happens inside the
// builders so callers cannot produce silently wrong output by skipping it.
package features

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/meridian-labs/demandcast/internal/dataset"
)

// Lags are the backward offsets (in weeks) applied to weekly_sales per
// (store, dept) series.
var Lags = []int{1, 2, 4, 8, 52}

// Windows are the trailing window sizes (in weeks) for rolling statistics.
// The smallest window additionally gets trailing min/max.
var Windows = []int{4, 13, 52}

// Pipeline orchestrates the feature builders over a merged dataset.
type Pipeline struct {
	log *zap.SugaredLogger
}

// NewPipeline creates a feature pipeline.
func NewPipeline(log *zap.SugaredLogger) *Pipeline {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Pipeline{log: log}
}

// Engineer produces one feature row per input sales row. Sales is the join
// anchor: indicator and store data attach by left join, so rows are never
// fabricated for weeks without a sales observation and never dropped for
// missing indicator or store data. Output is sorted by (store, dept, date).
func (p *Pipeline) Engineer(sales []dataset.SalesRecord, indicators []dataset.IndicatorRecord, stores []dataset.StoreRecord) ([]dataset.FeatureRow, error) {
	if len(sales) == 0 {
		return nil, fmt.Errorf("features: no sales records to engineer")
	}

	rows := p.merge(sales, indicators)

	applyTemporal(rows)
	applyLags(rows)
	applyRolling(rows)
	applyEconomic(rows)
	applyMarkdown(rows)
	if err := applyStore(rows, stores); err != nil {
		return nil, err
	}

	if len(rows) != len(sales) {
		return nil, fmt.Errorf("features: row count changed during engineering: %d in, %d out", len(sales), len(rows))
	}

	p.log.Infow("feature engineering complete",
		"rows", len(rows),
		"lags", Lags,
		"windows", Windows,
	)
	return rows, nil
}

type indicatorKey struct {
	storeID int
	date    time.Time
}

// merge left-joins sales with indicators on (store_id, date). The sales
// holiday flag wins over the indicator's copy: it is per-department and the
// indicator flag is dropped after the merge. Markdown values stay nullable
// here; the markdown builder owns the null-as-zero policy.
func (p *Pipeline) merge(sales []dataset.SalesRecord, indicators []dataset.IndicatorRecord) []dataset.FeatureRow {
	byKey := make(map[indicatorKey]*dataset.IndicatorRecord, len(indicators))
	for i := range indicators {
		ind := &indicators[i]
		byKey[indicatorKey{ind.StoreID, ind.Date.UTC()}] = ind
	}

	rows := make([]dataset.FeatureRow, len(sales))
	matched := 0
	for i, s := range sales {
		row := dataset.FeatureRow{
			StoreID:     s.StoreID,
			DeptID:      s.DeptID,
			FeatureDate: s.Date.UTC(),
			WeeklySales: s.WeeklySales,
			IsHoliday:   s.IsHoliday,
		}
		if ind, ok := byKey[indicatorKey{s.StoreID, s.Date.UTC()}]; ok {
			matched++
			row.Temperature = ind.Temperature
			row.FuelPrice = ind.FuelPrice
			row.CPI = ind.CPI
			row.Unemployment = ind.Unemployment
			row.RawMarkdowns = ind.Markdown
		}
		rows[i] = row
	}

	sortRows(rows)

	if matched < len(sales) {
		p.log.Warnw("sales weeks without matching indicator row",
			"unmatched", len(sales)-matched, "total", len(sales))
	}
	return rows
}

// sortRows orders rows by (store_id, dept_id, feature_date) ascending. Every
// builder that walks a partition relies on this ordering.
func sortRows(rows []dataset.FeatureRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := &rows[i], &rows[j]
		if a.StoreID != b.StoreID {
			return a.StoreID < b.StoreID
		}
		if a.DeptID != b.DeptID {
			return a.DeptID < b.DeptID
		}
		return a.FeatureDate.Before(b.FeatureDate)
	})
}

// seriesPartitions returns the index ranges of each (store, dept) partition.
// Rows must already be sorted by sortRows.
func seriesPartitions(rows []dataset.FeatureRow) [][2]int {
	var parts [][2]int
	start := 0
	for i := 1; i <= len(rows); i++ {
		if i == len(rows) || rows[i].Key() != rows[start].Key() {
			parts = append(parts, [2]int{start, i})
			start = i
		}
	}
	return parts
}

func ptr(v float64) *float64 { return &v }
