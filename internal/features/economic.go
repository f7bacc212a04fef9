package features

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/meridian-labs/demandcast/internal/dataset"
)

// applyEconomic derives per-store features from the exogenous indicators:
// temperature deviation from the store's mean, and week-over-week deltas for
// fuel price, CPI, and unemployment. Indicators are a per-(store, date)
// series shared by every department of the store, so derivations run over the
// distinct date series of each store and broadcast to its rows; computing
// diffs over the department-expanded rows would double-count weeks and mix
// departments at series boundaries. Each indicator column is diffed
// independently, so a week without a temperature reading still contributes
// its fuel, CPI, and unemployment values to the series.
func applyEconomic(rows []dataset.FeatureRow) {
	type point struct {
		date                   time.Time
		temp, fuel, cpi, unemp *float64
	}

	series := make(map[int][]point)
	seen := make(map[indicatorKey]bool)
	for i := range rows {
		r := &rows[i]
		k := indicatorKey{r.StoreID, r.FeatureDate}
		if seen[k] {
			continue
		}
		seen[k] = true
		series[r.StoreID] = append(series[r.StoreID], point{
			date:  r.FeatureDate,
			temp:  r.Temperature,
			fuel:  r.FuelPrice,
			cpi:   r.CPI,
			unemp: r.Unemployment,
		})
	}

	type derived struct {
		tempDev, fuelChg, cpiChg, unempChg *float64
	}
	byKey := make(map[indicatorKey]derived)

	for storeID, pts := range series {
		sort.Slice(pts, func(i, j int) bool { return pts[i].date.Before(pts[j].date) })

		var temps []float64
		for _, p := range pts {
			if p.temp != nil {
				temps = append(temps, *p.temp)
			}
		}
		var meanTemp float64
		if len(temps) > 0 {
			meanTemp = stat.Mean(temps, nil)
		}

		for i, p := range pts {
			var d derived
			if p.temp != nil && len(temps) > 0 {
				d.tempDev = ptr(*p.temp - meanTemp)
			}
			if i > 0 {
				prev := pts[i-1]
				d.fuelChg = diff(p.fuel, prev.fuel)
				d.cpiChg = diff(p.cpi, prev.cpi)
				d.unempChg = diff(p.unemp, prev.unemp)
			}
			byKey[indicatorKey{storeID, p.date}] = d
		}
	}

	for i := range rows {
		r := &rows[i]
		d, ok := byKey[indicatorKey{r.StoreID, r.FeatureDate}]
		if !ok {
			continue
		}
		r.TemperatureDeviation = d.tempDev
		r.FuelPriceChange = d.fuelChg
		r.CPIChange = d.cpiChg
		r.UnemploymentChange = d.unempChg
	}
}

// diff returns cur-prev, or nil when either side is missing. A delta over a
// gap in the reported series would be misleading rather than merely late.
func diff(cur, prev *float64) *float64 {
	if cur == nil || prev == nil {
		return nil
	}
	return ptr(*cur - *prev)
}
