package model

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/meridian-labs/demandcast/internal/dataset"
)

func fptr(v float64) *float64 { return &v }

// fullRow builds a feature row with every predictor defined, so BuildMatrix
// keeps it. The target tracks sales_lag_1, giving the model one strongly
// informative feature to find.
func fullRow(week int) dataset.FeatureRow {
	lag1 := float64(1000 + 173*(week%17))
	sales := 2*lag1 + 50

	return dataset.FeatureRow{
		StoreID: 1, DeptID: 1,
		FeatureDate: time.Date(2011, time.January, 7, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 7*week),
		WeeklySales: sales,

		WeekOfYear: week%52 + 1, Month: week%12 + 1, Quarter: (week%12)/3 + 1,
		IsHoliday: week%13 == 0,

		// Only sales_lag_1 carries signal; the rest are constant so the
		// importance ranking has a single possible winner.
		SalesLag1: fptr(lag1), SalesLag2: fptr(2000), SalesLag4: fptr(2000),
		SalesLag8: fptr(2000), SalesLag52: fptr(2000),

		RollingMean4: fptr(2000), RollingMean13: fptr(2000), RollingMean52: fptr(2000),
		RollingStd4: fptr(120), RollingStd13: fptr(150),
		RollingMin4: fptr(1500), RollingMax4: fptr(2500),

		Temperature: fptr(45), TemperatureDeviation: fptr(2),
		FuelPrice: fptr(3.1), FuelPriceChange: fptr(0.05),
		CPI: fptr(211), CPIChange: fptr(0.3),
		Unemployment: fptr(7.8), UnemploymentChange: fptr(-0.1),

		TotalMarkdown: 0, HasMarkdown: false, MarkdownCount: 0,
		StoreTypeA: true, SizeNormalized: fptr(0.5),
	}
}

func trainingRows(n int) []dataset.FeatureRow {
	rows := make([]dataset.FeatureRow, n)
	for i := range rows {
		rows[i] = fullRow(i)
	}
	return rows
}

func testParams() Params {
	return Params{
		NumRounds:           60,
		LearningRate:        0.1,
		MaxDepth:            3,
		MinSamplesLeaf:      1,
		EarlyStoppingRounds: 20,
	}
}

func TestTrainAndPredict(t *testing.T) {
	rows := trainingRows(120)
	train, val, err := Split(rows, 8)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}

	f := NewForecaster(testParams(), nil)
	m, err := f.Train(context.Background(), train, val)
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	if f.BestRound() < 1 {
		t.Errorf("BestRound = %d, want >= 1", f.BestRound())
	}
	if len(f.FeatureNames()) != len(dataset.PredictorColumns) {
		t.Errorf("feature names = %d, want %d", len(f.FeatureNames()), len(dataset.PredictorColumns))
	}

	// The target is a clean function of one feature; the fitted model must
	// track it closely.
	valM, _ := BuildMatrix(val)
	preds, err := f.Predict(valM.X)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	var mae, meanY float64
	for i := range preds {
		mae += math.Abs(preds[i] - valM.Y[i])
		meanY += valM.Y[i]
	}
	mae /= float64(len(preds))
	meanY /= float64(len(preds))
	if mae > 0.1*meanY {
		t.Errorf("validation MAE %v too large relative to mean target %v", mae, meanY)
	}
	if m.WMAE <= 0 && mae > 0 {
		t.Errorf("reported WMAE %v inconsistent with prediction error %v", m.WMAE, mae)
	}
}

func TestImportanceNormalized(t *testing.T) {
	rows := trainingRows(80)
	f := NewForecaster(testParams(), nil)
	if _, err := f.Train(context.Background(), rows, nil); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	imp := f.Importance()
	if len(imp) == 0 {
		t.Fatal("no importance entries")
	}
	var total float64
	for _, e := range imp {
		if e.Importance < 0 {
			t.Errorf("negative importance for %s", e.Feature)
		}
		total += e.Importance
	}
	if math.Abs(total-100) > 1e-6 {
		t.Errorf("importance sums to %v, want 100", total)
	}
	for i := 1; i < len(imp); i++ {
		if imp[i].Importance > imp[i-1].Importance {
			t.Error("importance not sorted descending")
		}
	}
	if imp[0].Feature != "sales_lag_1" {
		t.Errorf("top feature = %s, want sales_lag_1 (the only informative one)", imp[0].Feature)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	rows := trainingRows(80)
	f := NewForecaster(testParams(), nil)
	if _, err := f.Train(context.Background(), rows, nil); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "artifacts", "model.json")
	if err := f.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded := NewForecaster(testParams(), nil)
	if err := loaded.Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Name() != f.Name() || loaded.Version() != f.Version() {
		t.Errorf("identity changed: %s/%s vs %s/%s",
			loaded.Name(), loaded.Version(), f.Name(), f.Version())
	}

	m, _ := BuildMatrix(rows)
	want, err := f.Predict(m.X)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	got, err := loaded.Predict(m.X)
	if err != nil {
		t.Fatalf("Predict on loaded model failed: %v", err)
	}
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("prediction %d differs after reload: %v vs %v", i, want[i], got[i])
		}
	}
}

func TestPredictErrors(t *testing.T) {
	f := NewForecaster(testParams(), nil)
	if _, err := f.Predict([][]float64{make([]float64, len(dataset.PredictorColumns))}); !errors.Is(err, ErrNotTrained) {
		t.Errorf("untrained Predict error = %v, want ErrNotTrained", err)
	}
	if err := f.Save(filepath.Join(t.TempDir(), "m.json")); !errors.Is(err, ErrNotTrained) {
		t.Errorf("untrained Save error = %v, want ErrNotTrained", err)
	}

	rows := trainingRows(40)
	if _, err := f.Train(context.Background(), rows, nil); err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	if _, err := f.Predict([][]float64{{1, 2, 3}}); err == nil {
		t.Error("expected error for wrong-width input vector")
	}
}

func TestTrainEmptyDataset(t *testing.T) {
	f := NewForecaster(testParams(), nil)

	var emptyErr *EmptyDatasetError
	_, err := f.Train(context.Background(), nil, nil)
	if !errors.As(err, &emptyErr) {
		t.Fatalf("Train(nil) error = %v, want EmptyDatasetError", err)
	}

	// Rows whose predictors are all undefined vectorize to nothing.
	sparse := []dataset.FeatureRow{
		{StoreID: 1, DeptID: 1, FeatureDate: time.Now(), WeeklySales: 100},
	}
	_, err = f.Train(context.Background(), sparse, nil)
	if !errors.As(err, &emptyErr) {
		t.Fatalf("Train(sparse) error = %v, want EmptyDatasetError", err)
	}
}

func TestBuildMatrixDropsUndefinedRows(t *testing.T) {
	full := fullRow(5)
	sparse := dataset.FeatureRow{StoreID: 1, DeptID: 1, WeeklySales: 100}

	m, dropped := BuildMatrix([]dataset.FeatureRow{full, sparse, full})
	if m.Len() != 2 || dropped != 1 {
		t.Errorf("got %d kept, %d dropped; want 2 kept, 1 dropped", m.Len(), dropped)
	}
	if len(m.X[0]) != len(dataset.PredictorColumns) {
		t.Errorf("vector width = %d, want %d", len(m.X[0]), len(dataset.PredictorColumns))
	}
}
