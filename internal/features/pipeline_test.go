package features

import (
	"math"
	"testing"
	"time"

	"github.com/meridian-labs/demandcast/internal/dataset"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func weeklyDates(start time.Time, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.AddDate(0, 0, 7*i)
	}
	return out
}

func salesSeries(storeID, deptID int, start time.Time, values []float64) []dataset.SalesRecord {
	dates := weeklyDates(start, len(values))
	out := make([]dataset.SalesRecord, len(values))
	for i, v := range values {
		out[i] = dataset.SalesRecord{
			StoreID: storeID, DeptID: deptID, Date: dates[i], WeeklySales: v,
		}
	}
	return out
}

func testStores() []dataset.StoreRecord {
	return []dataset.StoreRecord{
		{StoreID: 1, StoreType: dataset.StoreTypeA, Size: 100000},
		{StoreID: 2, StoreType: dataset.StoreTypeB, Size: 200000},
	}
}

func approxEq(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func checkPtr(t *testing.T, name string, got *float64, want float64) {
	t.Helper()
	if got == nil {
		t.Fatalf("%s = nil, want %v", name, want)
	}
	if !approxEq(*got, want) {
		t.Errorf("%s = %v, want %v", name, *got, want)
	}
}

func TestEngineerLagAndRolling(t *testing.T) {
	sales := salesSeries(1, 1, date(2011, time.January, 7), []float64{100, 200, 150})

	rows, err := NewPipeline(nil).Engineer(sales, nil, testStores())
	if err != nil {
		t.Fatalf("Engineer failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}

	if rows[0].SalesLag1 != nil {
		t.Errorf("row 0 lag_1 = %v, want nil", *rows[0].SalesLag1)
	}
	checkPtr(t, "row 1 lag_1", rows[1].SalesLag1, 100)
	checkPtr(t, "row 2 lag_1", rows[2].SalesLag1, 200)
	if rows[2].SalesLag4 != nil {
		t.Errorf("row 2 lag_4 should be nil with only 3 weeks of history")
	}

	// Trailing means grow until the window fills.
	checkPtr(t, "row 0 rolling_mean_4", rows[0].RollingMean4, 100)
	checkPtr(t, "row 1 rolling_mean_4", rows[1].RollingMean4, 150)
	checkPtr(t, "row 2 rolling_mean_4", rows[2].RollingMean4, 150)

	// Sample std is undefined over one observation.
	if rows[0].RollingStd4 != nil {
		t.Errorf("row 0 rolling_std_4 = %v, want nil", *rows[0].RollingStd4)
	}
	checkPtr(t, "row 1 rolling_std_4", rows[1].RollingStd4, math.Sqrt(5000)) // std(100,200)
	checkPtr(t, "row 2 rolling_std_4", rows[2].RollingStd4, 50)             // std(100,200,150)

	// Every configured window carries a std, not just the short ones. With
	// three weeks of history all three trailing windows hold the same values.
	for _, w := range []struct {
		name string
		got  *float64
	}{
		{"rolling_std_13", rows[2].RollingStd13},
		{"rolling_std_52", rows[2].RollingStd52},
	} {
		checkPtr(t, "row 2 "+w.name, w.got, 50)
	}
	if rows[0].RollingStd52 != nil {
		t.Errorf("row 0 rolling_std_52 = %v, want nil", *rows[0].RollingStd52)
	}

	checkPtr(t, "row 2 rolling_min_4", rows[2].RollingMin4, 100)
	checkPtr(t, "row 2 rolling_max_4", rows[2].RollingMax4, 200)
}

func TestEngineerPartitionIsolation(t *testing.T) {
	sales := append(
		salesSeries(1, 1, date(2011, time.January, 7), []float64{100, 200}),
		salesSeries(1, 2, date(2011, time.January, 7), []float64{900, 950})...,
	)

	rows, err := NewPipeline(nil).Engineer(sales, nil, testStores())
	if err != nil {
		t.Fatalf("Engineer failed: %v", err)
	}

	// First row of the second department must not see dept 1's history.
	var dept2First *dataset.FeatureRow
	for i := range rows {
		if rows[i].DeptID == 2 && rows[i].SalesLag1 == nil {
			dept2First = &rows[i]
		}
	}
	if dept2First == nil {
		t.Fatal("second partition has no leading row with nil lag_1")
	}
	checkPtr(t, "dept 2 first rolling_mean_4", dept2First.RollingMean4, 900)
}

func TestEngineerInputOrderIrrelevant(t *testing.T) {
	ordered := salesSeries(1, 1, date(2011, time.January, 7), []float64{100, 200, 150, 300})
	shuffled := []dataset.SalesRecord{ordered[2], ordered[0], ordered[3], ordered[1]}

	p := NewPipeline(nil)
	a, err := p.Engineer(ordered, nil, testStores())
	if err != nil {
		t.Fatalf("Engineer(ordered) failed: %v", err)
	}
	b, err := p.Engineer(shuffled, nil, testStores())
	if err != nil {
		t.Fatalf("Engineer(shuffled) failed: %v", err)
	}

	for i := range a {
		if !a[i].FeatureDate.Equal(b[i].FeatureDate) {
			t.Fatalf("row %d dates differ: %v vs %v", i, a[i].FeatureDate, b[i].FeatureDate)
		}
		av, bv := a[i].SalesLag1, b[i].SalesLag1
		if (av == nil) != (bv == nil) || (av != nil && *av != *bv) {
			t.Errorf("row %d lag_1 differs between orderings", i)
		}
	}
}

func TestEngineerTemporalFeatures(t *testing.T) {
	tests := []struct {
		date       time.Time
		month      int
		quarter    int
		monthStart bool
		monthEnd   bool
	}{
		{date(2011, time.February, 1), 2, 1, true, false},
		{date(2011, time.February, 28), 2, 1, false, true},
		{date(2012, time.February, 29), 2, 1, false, true},
		{date(2011, time.July, 15), 7, 3, false, false},
		{date(2011, time.October, 31), 10, 4, false, true},
	}

	for _, tc := range tests {
		sales := []dataset.SalesRecord{{StoreID: 1, DeptID: 1, Date: tc.date, WeeklySales: 1}}
		rows, err := NewPipeline(nil).Engineer(sales, nil, testStores())
		if err != nil {
			t.Fatalf("Engineer failed for %v: %v", tc.date, err)
		}
		r := rows[0]
		if r.Month != tc.month || r.Quarter != tc.quarter ||
			r.IsMonthStart != tc.monthStart || r.IsMonthEnd != tc.monthEnd {
			t.Errorf("%v: got month=%d quarter=%d start=%v end=%v, want month=%d quarter=%d start=%v end=%v",
				tc.date, r.Month, r.Quarter, r.IsMonthStart, r.IsMonthEnd,
				tc.month, tc.quarter, tc.monthStart, tc.monthEnd)
		}
	}
}

func TestEngineerMarkdownAggregates(t *testing.T) {
	start := date(2011, time.January, 7)
	sales := salesSeries(1, 1, start, []float64{100, 100})

	indicators := []dataset.IndicatorRecord{
		{
			StoreID: 1, Date: start,
			Temperature: ptr(40), FuelPrice: ptr(3),
			Markdown: [5]*float64{ptr(50), nil, ptr(0), nil, ptr(25)},
		},
		// Second week has no active promotions at all.
		{
			StoreID: 1, Date: start.AddDate(0, 0, 7),
			Temperature: ptr(41), FuelPrice: ptr(3),
		},
	}

	rows, err := NewPipeline(nil).Engineer(sales, indicators, testStores())
	if err != nil {
		t.Fatalf("Engineer failed: %v", err)
	}

	if rows[0].TotalMarkdown != 75 {
		t.Errorf("total_markdown = %v, want 75", rows[0].TotalMarkdown)
	}
	if !rows[0].HasMarkdown {
		t.Error("has_markdown should be true when total > 0")
	}
	if rows[0].MarkdownCount != 2 {
		t.Errorf("markdown_count = %d, want 2 (zero-valued markdowns do not count)", rows[0].MarkdownCount)
	}

	if rows[1].TotalMarkdown != 0 || rows[1].HasMarkdown || rows[1].MarkdownCount != 0 {
		t.Errorf("all-null markdowns should aggregate to zero, got total=%v has=%v count=%d",
			rows[1].TotalMarkdown, rows[1].HasMarkdown, rows[1].MarkdownCount)
	}
}

func TestEngineerHolidayFlagFromSales(t *testing.T) {
	start := date(2011, time.November, 25)
	sales := []dataset.SalesRecord{
		{StoreID: 1, DeptID: 1, Date: start, WeeklySales: 100, IsHoliday: true},
	}
	indicators := []dataset.IndicatorRecord{
		{StoreID: 1, Date: start, Temperature: ptr(40), FuelPrice: ptr(3), IsHoliday: false},
	}

	rows, err := NewPipeline(nil).Engineer(sales, indicators, testStores())
	if err != nil {
		t.Fatalf("Engineer failed: %v", err)
	}
	if !rows[0].IsHoliday {
		t.Error("sales holiday flag must win over the indicator's copy")
	}
}

func TestEngineerEconomicDerivations(t *testing.T) {
	start := date(2011, time.January, 7)
	sales := salesSeries(1, 1, start, []float64{100, 100})

	indicators := []dataset.IndicatorRecord{
		{
			StoreID: 1, Date: start,
			Temperature: ptr(30), FuelPrice: ptr(3.00),
			CPI: ptr(210), Unemployment: ptr(8.0),
		},
		{
			StoreID: 1, Date: start.AddDate(0, 0, 7),
			Temperature: ptr(50), FuelPrice: ptr(3.25),
			CPI: nil, Unemployment: ptr(7.5),
		},
	}

	rows, err := NewPipeline(nil).Engineer(sales, indicators, testStores())
	if err != nil {
		t.Fatalf("Engineer failed: %v", err)
	}

	// Mean temperature for the store is 40.
	checkPtr(t, "row 0 temperature_deviation", rows[0].TemperatureDeviation, -10)
	checkPtr(t, "row 1 temperature_deviation", rows[1].TemperatureDeviation, 10)

	if rows[0].FuelPriceChange != nil {
		t.Error("first week has no prior value to diff against")
	}
	checkPtr(t, "row 1 fuel_price_change", rows[1].FuelPriceChange, 0.25)
	checkPtr(t, "row 1 unemployment_change", rows[1].UnemploymentChange, -0.5)

	// CPI is unreported on week 2; the delta is undefined, not zero.
	if rows[1].CPIChange != nil {
		t.Errorf("cpi_change = %v, want nil when CPI is unreported", *rows[1].CPIChange)
	}
}

func TestEngineerEconomicMissingTemperature(t *testing.T) {
	start := date(2011, time.January, 7)
	sales := salesSeries(1, 1, start, []float64{100, 100, 100})

	// Week 2 reports fuel price but no temperature. Each indicator column
	// diffs independently, so the fuel series must not skip the week.
	indicators := []dataset.IndicatorRecord{
		{StoreID: 1, Date: start, Temperature: ptr(30), FuelPrice: ptr(3.00)},
		{StoreID: 1, Date: start.AddDate(0, 0, 7), Temperature: nil, FuelPrice: ptr(3.10)},
		{StoreID: 1, Date: start.AddDate(0, 0, 14), Temperature: ptr(50), FuelPrice: ptr(3.30)},
	}

	rows, err := NewPipeline(nil).Engineer(sales, indicators, testStores())
	if err != nil {
		t.Fatalf("Engineer failed: %v", err)
	}

	checkPtr(t, "row 1 fuel_price_change", rows[1].FuelPriceChange, 0.10)
	checkPtr(t, "row 2 fuel_price_change", rows[2].FuelPriceChange, 0.20)

	// Mean temperature covers the reported weeks only (30, 50).
	checkPtr(t, "row 0 temperature_deviation", rows[0].TemperatureDeviation, -10)
	if rows[1].TemperatureDeviation != nil {
		t.Errorf("row 1 temperature_deviation = %v, want nil with no reading", *rows[1].TemperatureDeviation)
	}
	checkPtr(t, "row 2 temperature_deviation", rows[2].TemperatureDeviation, 10)
}

func TestEngineerStoreFeatures(t *testing.T) {
	// Store 1 contributes two departments, store 2 one, so the size scaler
	// sees {100000, 100000, 200000} rather than one size per store.
	sales := append(
		salesSeries(1, 1, date(2011, time.January, 7), []float64{100}),
		salesSeries(1, 2, date(2011, time.January, 7), []float64{100})...,
	)
	sales = append(sales, salesSeries(2, 1, date(2011, time.January, 7), []float64{100})...)

	rows, err := NewPipeline(nil).Engineer(sales, nil, testStores())
	if err != nil {
		t.Fatalf("Engineer failed: %v", err)
	}

	for i := range rows {
		r := &rows[i]
		switch r.StoreID {
		case 1:
			if !r.StoreTypeA || r.StoreTypeB || r.StoreTypeC {
				t.Errorf("store 1 one-hot = (%v,%v,%v), want (true,false,false)",
					r.StoreTypeA, r.StoreTypeB, r.StoreTypeC)
			}
			// Mean 400000/3, sample std 100000/sqrt(3): z-scores are
			// -1/sqrt(3) and 2/sqrt(3).
			checkPtr(t, "store 1 size_normalized", r.SizeNormalized, -1/math.Sqrt(3))
		case 2:
			if r.StoreTypeA || !r.StoreTypeB || r.StoreTypeC {
				t.Errorf("store 2 one-hot = (%v,%v,%v), want (false,true,false)",
					r.StoreTypeA, r.StoreTypeB, r.StoreTypeC)
			}
			checkPtr(t, "store 2 size_normalized", r.SizeNormalized, 2/math.Sqrt(3))
		}
	}
}

func TestEngineerUnknownStoreLeftJoin(t *testing.T) {
	sales := salesSeries(99, 1, date(2011, time.January, 7), []float64{100})

	rows, err := NewPipeline(nil).Engineer(sales, nil, testStores())
	if err != nil {
		t.Fatalf("Engineer failed: %v", err)
	}
	r := rows[0]
	if r.StoreTypeA || r.StoreTypeB || r.StoreTypeC || r.SizeNormalized != nil {
		t.Error("rows for an unknown store must keep zero type flags and nil size")
	}
}

func TestEngineerEmptyInputs(t *testing.T) {
	if _, err := NewPipeline(nil).Engineer(nil, nil, testStores()); err == nil {
		t.Error("expected error for empty sales")
	}
	sales := salesSeries(1, 1, date(2011, time.January, 7), []float64{100})
	if _, err := NewPipeline(nil).Engineer(sales, nil, nil); err == nil {
		t.Error("expected error for empty store dimension table")
	}
}
