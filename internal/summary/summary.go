// Package summary condenses forecast and sales tables into small typed
// aggregates. The insight agents prompt a language model with these instead
// of raw rows, so every figure a prompt can contain is computed here, in
// code, where it is testable.
package summary

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/meridian-labs/demandcast/internal/dataset"
)

// ForecastSummary aggregates one forecast run. All figures are weekly.
type ForecastSummary struct {
	TotalPredicted float64   `json:"total_predicted"`
	AvgPredicted   float64   `json:"avg_predicted"`
	MinPredicted   float64   `json:"min_predicted"`
	MaxPredicted   float64   `json:"max_predicted"`
	PeriodStart    time.Time `json:"period_start"`
	PeriodEnd      time.Time `json:"period_end"`
	NumWeeks       int       `json:"num_weeks"`
	NumSeries      int       `json:"num_series"`
	NumStores      int       `json:"num_stores"`
	NumDepts       int       `json:"num_depts"`

	// ByStore is populated only for small store counts; a 45-store
	// breakdown would drown the prompt rather than inform it.
	ByStore []StoreDemand `json:"by_store,omitempty"`
}

// StoreDemand is one store's predicted weekly demand profile.
type StoreDemand struct {
	StoreID int     `json:"store_id"`
	Mean    float64 `json:"mean"`
	Std     float64 `json:"std"`
	Total   float64 `json:"total"`
}

const maxStoreBreakdown = 10

// SummarizeForecasts aggregates forecast rows. Returns the zero value for an
// empty input.
func SummarizeForecasts(rows []dataset.ForecastRow) ForecastSummary {
	if len(rows) == 0 {
		return ForecastSummary{}
	}

	s := ForecastSummary{
		MinPredicted: rows[0].PredictedSales,
		MaxPredicted: rows[0].PredictedSales,
		PeriodStart:  rows[0].ForecastDate,
		PeriodEnd:    rows[0].ForecastDate,
	}
	weeks := make(map[time.Time]bool)
	series := make(map[dataset.SeriesKey]bool)
	stores := make(map[int][]float64)
	depts := make(map[int]bool)

	for _, r := range rows {
		s.TotalPredicted += r.PredictedSales
		if r.PredictedSales < s.MinPredicted {
			s.MinPredicted = r.PredictedSales
		}
		if r.PredictedSales > s.MaxPredicted {
			s.MaxPredicted = r.PredictedSales
		}
		if r.ForecastDate.Before(s.PeriodStart) {
			s.PeriodStart = r.ForecastDate
		}
		if r.ForecastDate.After(s.PeriodEnd) {
			s.PeriodEnd = r.ForecastDate
		}
		weeks[r.ForecastDate] = true
		series[dataset.SeriesKey{StoreID: r.StoreID, DeptID: r.DeptID}] = true
		stores[r.StoreID] = append(stores[r.StoreID], r.PredictedSales)
		depts[r.DeptID] = true
	}

	s.AvgPredicted = s.TotalPredicted / float64(len(rows))
	s.NumWeeks = len(weeks)
	s.NumSeries = len(series)
	s.NumStores = len(stores)
	s.NumDepts = len(depts)

	if len(stores) <= maxStoreBreakdown {
		for id, vals := range stores {
			mean, std := stat.MeanStdDev(vals, nil)
			if len(vals) < 2 {
				std = 0
			}
			s.ByStore = append(s.ByStore, StoreDemand{
				StoreID: id, Mean: mean, Std: std, Total: sum(vals),
			})
		}
		sort.Slice(s.ByStore, func(i, j int) bool { return s.ByStore[i].StoreID < s.ByStore[j].StoreID })
	}
	return s
}

// HistoricalSummary aggregates observed weekly sales.
type HistoricalSummary struct {
	AvgSales    float64   `json:"avg_sales"`
	MedianSales float64   `json:"median_sales"`
	StdSales    float64   `json:"std_sales"`
	TotalSales  float64   `json:"total_sales"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	NumWeeks    int       `json:"num_weeks"`
	NumRecords  int       `json:"num_records"`

	// Trend compares the most recent eight distinct weeks against the
	// eight before them. Nil when history is shorter than sixteen weeks.
	Trend *TrendSummary `json:"trend,omitempty"`
}

// TrendSummary is a recent-vs-prior average comparison.
type TrendSummary struct {
	RecentAvg float64 `json:"recent_avg"`
	PriorAvg  float64 `json:"prior_avg"`
	ChangePct float64 `json:"change_pct"`
}

const trendWindowWeeks = 8

// SummarizeSales aggregates sales records. Returns the zero value for an
// empty input.
func SummarizeSales(rows []dataset.SalesRecord) HistoricalSummary {
	if len(rows) == 0 {
		return HistoricalSummary{}
	}

	vals := make([]float64, len(rows))
	weeks := make(map[time.Time]bool)
	s := HistoricalSummary{
		PeriodStart: rows[0].Date,
		PeriodEnd:   rows[0].Date,
		NumRecords:  len(rows),
	}
	for i, r := range rows {
		vals[i] = r.WeeklySales
		s.TotalSales += r.WeeklySales
		weeks[r.Date] = true
		if r.Date.Before(s.PeriodStart) {
			s.PeriodStart = r.Date
		}
		if r.Date.After(s.PeriodEnd) {
			s.PeriodEnd = r.Date
		}
	}
	s.NumWeeks = len(weeks)

	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	s.MedianSales = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	var std float64
	s.AvgSales, std = stat.MeanStdDev(vals, nil)
	if len(vals) >= 2 {
		s.StdSales = std
	}

	s.Trend = trend(rows, weeks)
	return s
}

func trend(rows []dataset.SalesRecord, weeks map[time.Time]bool) *TrendSummary {
	if len(weeks) < 2*trendWindowWeeks {
		return nil
	}
	dates := make([]time.Time, 0, len(weeks))
	for d := range weeks {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })

	recent := make(map[time.Time]bool, trendWindowWeeks)
	prior := make(map[time.Time]bool, trendWindowWeeks)
	for i, d := range dates[:2*trendWindowWeeks] {
		if i < trendWindowWeeks {
			recent[d] = true
		} else {
			prior[d] = true
		}
	}

	var recentVals, priorVals []float64
	for _, r := range rows {
		switch {
		case recent[r.Date]:
			recentVals = append(recentVals, r.WeeklySales)
		case prior[r.Date]:
			priorVals = append(priorVals, r.WeeklySales)
		}
	}
	if len(priorVals) == 0 {
		return nil
	}
	t := &TrendSummary{
		RecentAvg: stat.Mean(recentVals, nil),
		PriorAvg:  stat.Mean(priorVals, nil),
	}
	if t.PriorAvg != 0 {
		t.ChangePct = (t.RecentAvg - t.PriorAvg) / t.PriorAvg * 100
	}
	return t
}

func sum(vals []float64) float64 {
	var total float64
	for _, v := range vals {
		total += v
	}
	return total
}
