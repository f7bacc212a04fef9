package forecast

import (
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/meridian-labs/demandcast/internal/dataset"
)

// stubPredictor returns a fixed value per call index, or errors when told to.
type stubPredictor struct {
	value   float64
	values  []float64
	failure error
	gotX    [][]float64
}

func (s *stubPredictor) Predict(x [][]float64) ([]float64, error) {
	s.gotX = x
	if s.failure != nil {
		return nil, s.failure
	}
	out := make([]float64, len(x))
	for i := range out {
		if i < len(s.values) {
			out[i] = s.values[i]
		} else {
			out[i] = s.value
		}
	}
	return out, nil
}

func (s *stubPredictor) FeatureNames() []string { return dataset.PredictorColumns }
func (s *stubPredictor) Name() string           { return "stub_model" }
func (s *stubPredictor) Version() string        { return "v0" }

func fp(v float64) *float64 { return &v }

func latestRow(storeID, deptID int, date time.Time) dataset.FeatureRow {
	r := dataset.FeatureRow{
		StoreID: storeID, DeptID: deptID, FeatureDate: date,
		WeekOfYear: 40, Month: 10, Quarter: 4,

		SalesLag1: fp(1000), SalesLag2: fp(990), SalesLag4: fp(980),
		SalesLag8: fp(970), SalesLag52: fp(960),
		RollingMean4: fp(1000), RollingMean13: fp(1000), RollingMean52: fp(1000),
		RollingStd4: fp(50), RollingStd13: fp(60),
		RollingMin4: fp(900), RollingMax4: fp(1100),
		Temperature: fp(55), TemperatureDeviation: fp(1),
		FuelPrice: fp(3.2), FuelPriceChange: fp(0.01),
		CPI: fp(212), CPIChange: fp(0.2),
		Unemployment: fp(7.5), UnemploymentChange: fp(0),
		SizeNormalized: fp(0.3),
		StoreTypeA:     true,
	}
	return r
}

func TestExtrapolateHorizonDatesAndIdentity(t *testing.T) {
	last := time.Date(2012, time.October, 26, 0, 0, 0, 0, time.UTC)
	latest := []dataset.FeatureRow{
		latestRow(2, 7, last.AddDate(0, 0, -7)),
		latestRow(1, 3, last),
	}

	p := &stubPredictor{value: 2000}
	rows, err := NewExtrapolator(nil).Extrapolate(latest, p, 8)
	if err != nil {
		t.Fatalf("Extrapolate failed: %v", err)
	}
	if len(rows) != 16 {
		t.Fatalf("got %d rows, want 16 (2 series x 8 weeks)", len(rows))
	}

	// Output is ordered by (store, dept) regardless of input order, and all
	// series share one horizon anchored on the globally newest feature date.
	if rows[0].StoreID != 1 || rows[0].DeptID != 3 {
		t.Errorf("first series = (%d,%d), want (1,3)", rows[0].StoreID, rows[0].DeptID)
	}
	for w := 0; w < 8; w++ {
		want := last.AddDate(0, 0, 7*(w+1))
		for _, r := range []dataset.ForecastRow{rows[w], rows[8+w]} {
			if !r.ForecastDate.Equal(want) {
				t.Errorf("week %d date = %s, want %s", w, r.ForecastDate, want)
			}
		}
	}

	for _, r := range rows {
		if r.ModelName != "stub_model" || r.ModelVersion != "v0" {
			t.Fatalf("forecast stamped %s/%s, want stub_model/v0", r.ModelName, r.ModelVersion)
		}
	}
}

func TestExtrapolateConfidenceDecay(t *testing.T) {
	latest := []dataset.FeatureRow{
		latestRow(1, 1, time.Date(2012, time.October, 26, 0, 0, 0, 0, time.UTC)),
	}
	rows, err := NewExtrapolator(nil).Extrapolate(latest, &stubPredictor{value: 500}, 8)
	if err != nil {
		t.Fatalf("Extrapolate failed: %v", err)
	}
	for w, r := range rows {
		want := 0.85 - 0.02*float64(w)
		if math.Abs(r.ConfidenceScore-want) > 1e-9 {
			t.Errorf("week %d confidence = %v, want %v", w, r.ConfidenceScore, want)
		}
	}
}

func TestExtrapolateBounds(t *testing.T) {
	latest := []dataset.FeatureRow{
		latestRow(1, 1, time.Date(2012, time.October, 26, 0, 0, 0, 0, time.UTC)),
	}

	tests := []struct {
		name       string
		pred       float64
		wantPoint  float64
		wantStd    float64
		lowClamped bool
	}{
		{name: "large prediction uses fractional std", pred: 10000, wantPoint: 10000, wantStd: 1500},
		{name: "small prediction hits std floor", pred: 200, wantPoint: 200, wantStd: 100},
		{name: "negative prediction clamps to zero", pred: -300, wantPoint: 0, wantStd: 100, lowClamped: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := NewExtrapolator(nil).Extrapolate(latest, &stubPredictor{value: tt.pred}, 1)
			if err != nil {
				t.Fatalf("Extrapolate failed: %v", err)
			}
			r := rows[0]
			if r.PredictedSales != tt.wantPoint {
				t.Errorf("point = %v, want %v", r.PredictedSales, tt.wantPoint)
			}
			wantUpper := math.Round((tt.wantPoint+1.96*tt.wantStd)*100) / 100
			if r.PredictionUpper != wantUpper {
				t.Errorf("upper = %v, want %v", r.PredictionUpper, wantUpper)
			}
			if tt.lowClamped {
				if r.PredictionLower != 0 {
					t.Errorf("lower = %v, want clamped to 0", r.PredictionLower)
				}
			} else {
				wantLower := math.Round((tt.wantPoint-1.96*tt.wantStd)*100) / 100
				if r.PredictionLower != wantLower {
					t.Errorf("lower = %v, want %v", r.PredictionLower, wantLower)
				}
			}
		})
	}
}

func TestExtrapolateCalendarRewrite(t *testing.T) {
	// Last observed 2012-10-26; the scored vectors must carry the future
	// week's calendar, not the held-over October values.
	latest := []dataset.FeatureRow{
		latestRow(1, 1, time.Date(2012, time.October, 26, 0, 0, 0, 0, time.UTC)),
	}
	p := &stubPredictor{value: 100}
	if _, err := NewExtrapolator(nil).Extrapolate(latest, p, 2); err != nil {
		t.Fatalf("Extrapolate failed: %v", err)
	}

	idx := make(map[string]int, len(dataset.PredictorColumns))
	for i, c := range dataset.PredictorColumns {
		idx[c] = i
	}

	// Week 1: 2012-11-02, first week of November.
	v := p.gotX[0]
	if v[idx["month"]] != 11 || v[idx["quarter"]] != 4 {
		t.Errorf("week 1 month/quarter = %v/%v, want 11/4", v[idx["month"]], v[idx["quarter"]])
	}
	if v[idx["is_month_start"]] != 1 {
		t.Error("2012-11-02 should flag as month start")
	}
	if v[idx["is_month_end"]] != 0 {
		t.Error("2012-11-02 should not flag as month end")
	}
	// Week 2: 2012-11-09, neither boundary.
	v = p.gotX[1]
	if v[idx["is_month_start"]] != 0 || v[idx["is_month_end"]] != 0 {
		t.Errorf("2012-11-09 boundary flags = %v/%v, want 0/0",
			v[idx["is_month_start"]], v[idx["is_month_end"]])
	}
	// The non-calendar features are held at their observed values.
	if v[idx["sales_lag_1"]] != 1000 {
		t.Errorf("sales_lag_1 = %v, want held at 1000", v[idx["sales_lag_1"]])
	}
}

func TestExtrapolateFillsUndefinedWithZero(t *testing.T) {
	row := latestRow(1, 1, time.Date(2012, time.October, 26, 0, 0, 0, 0, time.UTC))
	row.SalesLag52 = nil
	row.CPIChange = nil

	p := &stubPredictor{value: 100}
	if _, err := NewExtrapolator(nil).Extrapolate([]dataset.FeatureRow{row}, p, 1); err != nil {
		t.Fatalf("Extrapolate failed: %v", err)
	}
	for i, v := range p.gotX[0] {
		if math.IsNaN(v) {
			t.Errorf("scored vector has NaN at %s", dataset.PredictorColumns[i])
		}
	}
}

func TestExtrapolateErrors(t *testing.T) {
	e := NewExtrapolator(nil)
	if _, err := e.Extrapolate(nil, &stubPredictor{}, 8); err == nil ||
		!strings.Contains(err.Error(), "feature engineering stage") {
		t.Errorf("empty latest error = %v, want pointer to the engineering stage", err)
	}

	latest := []dataset.FeatureRow{
		latestRow(1, 1, time.Date(2012, time.October, 26, 0, 0, 0, 0, time.UTC)),
	}
	if _, err := e.Extrapolate(latest, &stubPredictor{}, 0); err == nil {
		t.Error("expected error for zero horizon")
	}
	if _, err := e.Extrapolate(latest, &stubPredictor{failure: fmt.Errorf("boom")}, 1); err == nil ||
		!strings.Contains(err.Error(), "boom") {
		t.Errorf("predictor failure not propagated: %v", err)
	}
}
