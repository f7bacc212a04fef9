package summary

import (
	"math"
	"testing"
	"time"

	"github.com/meridian-labs/demandcast/internal/dataset"
)

func week(n int) time.Time {
	return time.Date(2012, time.June, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 7*n)
}

func forecastRow(store, dept, w int, sales float64) dataset.ForecastRow {
	return dataset.ForecastRow{StoreID: store, DeptID: dept, ForecastDate: week(w), PredictedSales: sales}
}

func salesRow(store, dept, w int, sales float64) dataset.SalesRecord {
	return dataset.SalesRecord{StoreID: store, DeptID: dept, Date: week(w), WeeklySales: sales}
}

func TestSummarizeForecasts(t *testing.T) {
	rows := []dataset.ForecastRow{
		forecastRow(1, 1, 0, 100),
		forecastRow(1, 1, 1, 300),
		forecastRow(2, 1, 0, 200),
		forecastRow(2, 1, 1, 400),
		forecastRow(2, 5, 0, 500),
	}
	s := SummarizeForecasts(rows)

	if s.TotalPredicted != 1500 || s.AvgPredicted != 300 {
		t.Errorf("total/avg = %v/%v, want 1500/300", s.TotalPredicted, s.AvgPredicted)
	}
	if s.MinPredicted != 100 || s.MaxPredicted != 500 {
		t.Errorf("min/max = %v/%v, want 100/500", s.MinPredicted, s.MaxPredicted)
	}
	if !s.PeriodStart.Equal(week(0)) || !s.PeriodEnd.Equal(week(1)) {
		t.Errorf("period = %s..%s, want %s..%s", s.PeriodStart, s.PeriodEnd, week(0), week(1))
	}
	if s.NumWeeks != 2 || s.NumSeries != 3 || s.NumStores != 2 || s.NumDepts != 2 {
		t.Errorf("counts weeks/series/stores/depts = %d/%d/%d/%d, want 2/3/2/2",
			s.NumWeeks, s.NumSeries, s.NumStores, s.NumDepts)
	}

	if len(s.ByStore) != 2 {
		t.Fatalf("breakdown has %d stores, want 2", len(s.ByStore))
	}
	if s.ByStore[0].StoreID != 1 || s.ByStore[1].StoreID != 2 {
		t.Error("breakdown not sorted by store id")
	}
	if s.ByStore[0].Mean != 200 || s.ByStore[0].Total != 400 {
		t.Errorf("store 1 mean/total = %v/%v, want 200/400", s.ByStore[0].Mean, s.ByStore[0].Total)
	}
	// Sample std of {200, 400, 500} is sqrt(23333.33).
	wantStd := math.Sqrt(70000.0 / 3)
	if math.Abs(s.ByStore[1].Std-wantStd) > 1e-9 {
		t.Errorf("store 2 std = %v, want %v", s.ByStore[1].Std, wantStd)
	}
}

func TestSummarizeForecastsSkipsBreakdownForManyStores(t *testing.T) {
	var rows []dataset.ForecastRow
	for store := 1; store <= 11; store++ {
		rows = append(rows, forecastRow(store, 1, 0, 100))
	}
	if s := SummarizeForecasts(rows); s.ByStore != nil {
		t.Errorf("got %d-store breakdown, want none above the cutoff", len(s.ByStore))
	}
}

func TestSummarizeForecastsEmpty(t *testing.T) {
	s := SummarizeForecasts(nil)
	if s.TotalPredicted != 0 || s.NumSeries != 0 || s.ByStore != nil {
		t.Errorf("non-zero summary for empty input: %+v", s)
	}
}

func TestSummarizeSales(t *testing.T) {
	rows := []dataset.SalesRecord{
		salesRow(1, 1, 2, 300),
		salesRow(1, 1, 0, 100),
		salesRow(1, 1, 1, 200),
		salesRow(2, 1, 1, 400),
	}
	s := SummarizeSales(rows)

	if s.TotalSales != 1000 || s.AvgSales != 250 || s.NumRecords != 4 || s.NumWeeks != 3 {
		t.Errorf("total/avg/records/weeks = %v/%v/%d/%d, want 1000/250/4/3",
			s.TotalSales, s.AvgSales, s.NumRecords, s.NumWeeks)
	}
	// Empirical quantile: smallest observed value covering half the mass.
	if s.MedianSales != 200 {
		t.Errorf("median = %v, want 200", s.MedianSales)
	}
	if !s.PeriodStart.Equal(week(0)) || !s.PeriodEnd.Equal(week(2)) {
		t.Errorf("period = %s..%s", s.PeriodStart, s.PeriodEnd)
	}
	if s.Trend != nil {
		t.Error("trend computed from only 3 weeks of history")
	}
}

func TestSummarizeSalesSingleRecord(t *testing.T) {
	s := SummarizeSales([]dataset.SalesRecord{salesRow(1, 1, 0, 500)})
	if s.StdSales != 0 {
		t.Errorf("std of a single record = %v, want 0", s.StdSales)
	}
	if s.MedianSales != 500 || s.AvgSales != 500 {
		t.Errorf("median/avg = %v/%v, want 500/500", s.MedianSales, s.AvgSales)
	}
}

func TestSummarizeSalesTrend(t *testing.T) {
	// 16 weeks: prior eight average 100, recent eight average 150.
	var rows []dataset.SalesRecord
	for w := 0; w < 8; w++ {
		rows = append(rows, salesRow(1, 1, w, 100))
	}
	for w := 8; w < 16; w++ {
		rows = append(rows, salesRow(1, 1, w, 150))
	}
	s := SummarizeSales(rows)
	if s.Trend == nil {
		t.Fatal("no trend from 16 weeks of history")
	}
	if s.Trend.RecentAvg != 150 || s.Trend.PriorAvg != 100 {
		t.Errorf("recent/prior = %v/%v, want 150/100", s.Trend.RecentAvg, s.Trend.PriorAvg)
	}
	if math.Abs(s.Trend.ChangePct-50) > 1e-9 {
		t.Errorf("change = %v%%, want 50%%", s.Trend.ChangePct)
	}
}

func TestSummarizeSalesTrendIgnoresOlderWeeks(t *testing.T) {
	// 20 weeks: four ancient outlier weeks must not leak into either window.
	var rows []dataset.SalesRecord
	for w := 0; w < 4; w++ {
		rows = append(rows, salesRow(1, 1, w, 99999))
	}
	for w := 4; w < 12; w++ {
		rows = append(rows, salesRow(1, 1, w, 100))
	}
	for w := 12; w < 20; w++ {
		rows = append(rows, salesRow(1, 1, w, 200))
	}
	s := SummarizeSales(rows)
	if s.Trend == nil {
		t.Fatal("no trend from 20 weeks of history")
	}
	if s.Trend.RecentAvg != 200 || s.Trend.PriorAvg != 100 {
		t.Errorf("recent/prior = %v/%v, want 200/100", s.Trend.RecentAvg, s.Trend.PriorAvg)
	}
}
