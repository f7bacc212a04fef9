// Package model trains, persists, and serves the demand forecasting model: a
// gradient-boosted regression-tree ensemble fit on engineered weekly features
// with a holiday-weighted error objective.
package model

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meridian-labs/demandcast/internal/dataset"
	"github.com/meridian-labs/demandcast/internal/eval"
)

const (
	// DefaultModelName identifies the forecaster in forecast rows and the
	// run-metadata log.
	DefaultModelName = "gbrt_forecaster"
	// DefaultModelVersion is the logical model version; retraining under the
	// same version still produces a brand-new immutable artifact.
	DefaultModelVersion = "v1.0"
)

// MetadataSink receives the run-metadata record after a successful training
// run. Persistence through the sink is best-effort: a sink failure is logged
// and never discards the trained model.
type MetadataSink interface {
	AppendRunMetadata(ctx context.Context, meta dataset.RunMetadata) error
}

// Forecaster trains a boosted-tree regressor on engineered features and
// serves predictions. A Forecaster is not safe for concurrent training runs;
// callers serialize train/save as single-writer.
type Forecaster struct {
	log    *zap.SugaredLogger
	params Params
	sink   MetadataSink

	name    string
	version string

	model        *gbrt
	featureNames []string
	importance   []dataset.ImportanceEntry
	trainedAt    time.Time
}

// NewForecaster creates an untrained forecaster.
func NewForecaster(params Params, log *zap.SugaredLogger) *Forecaster {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Forecaster{
		log:     log,
		params:  params,
		name:    DefaultModelName,
		version: DefaultModelVersion,
	}
}

// SetMetadataSink wires the run-metadata side channel.
func (f *Forecaster) SetMetadataSink(s MetadataSink) { f.sink = s }

// Name returns the model name stamped on forecasts and metadata.
func (f *Forecaster) Name() string { return f.name }

// Version returns the logical model version.
func (f *Forecaster) Version() string { return f.version }

// FeatureNames returns the exact ordered feature list the model was trained
// with. Prediction input must match this order.
func (f *Forecaster) FeatureNames() []string { return f.featureNames }

// Importance returns the gain-based feature importance ranking, sorted
// descending and normalized to sum 100.
func (f *Forecaster) Importance() []dataset.ImportanceEntry { return f.importance }

// BestRound returns the boosting rounds kept by early stopping, or 0 when
// untrained.
func (f *Forecaster) BestRound() int {
	if f.model == nil {
		return 0
	}
	return f.model.BestRound
}

// Train fits the model on the train rows with early stopping monitored on the
// validation rows' weighted error (training error when valRows is nil). Rows
// with undefined lag/rolling cells are dropped before fitting. Training with
// zero usable rows fails fast with an EmptyDatasetError.
func (f *Forecaster) Train(ctx context.Context, trainRows, valRows []dataset.FeatureRow) (eval.Metrics, error) {
	trainM, droppedTrain := BuildMatrix(trainRows)
	valM, droppedVal := BuildMatrix(valRows)

	if trainM.Len() == 0 {
		return eval.Metrics{}, &EmptyDatasetError{Train: trainM.Len(), Val: valM.Len()}
	}
	f.log.Infow("training matrix prepared",
		"train_rows", trainM.Len(), "train_dropped", droppedTrain,
		"val_rows", valM.Len(), "val_dropped", droppedVal,
		"features", len(trainM.Columns),
	)

	gainByFeat := make([]float64, len(trainM.Columns))
	start := time.Now()
	g, metrics, err := fitGBRT(trainM, valM, f.params, gainByFeat)
	if err != nil {
		return eval.Metrics{}, err
	}

	f.model = g
	f.featureNames = trainM.Columns
	f.importance = normalizeImportance(trainM.Columns, gainByFeat)
	f.trainedAt = time.Now().UTC()

	f.log.Infow("training complete",
		"best_round", g.BestRound,
		"trees", len(g.Trees),
		"wmae", metrics.WMAE,
		"mae", metrics.MAE,
		"rmse", metrics.RMSE,
		"duration", time.Since(start),
	)
	for i, e := range f.importance {
		if i >= 10 {
			break
		}
		f.log.Infow("feature importance", "rank", i+1, "feature", e.Feature, "importance", e.Importance)
	}

	f.persistMetadata(ctx, metrics)
	return metrics, nil
}

// persistMetadata writes the run record through the sink. Failures are
// logged, not raised: a usable model is never discarded over a metadata
// write fault.
func (f *Forecaster) persistMetadata(ctx context.Context, metrics eval.Metrics) {
	if f.sink == nil {
		return
	}
	meta := dataset.RunMetadata{
		RunID:             uuid.NewString(),
		ModelName:         f.name,
		ModelVersion:      f.version,
		WMAE:              metrics.WMAE,
		MAE:               metrics.MAE,
		RMSE:              metrics.RMSE,
		TrainingDate:      f.trainedAt,
		Parameters:        f.params.Map(),
		FeatureImportance: f.importance,
	}
	if err := f.sink.AppendRunMetadata(ctx, meta); err != nil {
		f.log.Warnw("run metadata persistence failed, model unaffected", "run_id", meta.RunID, "error", err)
	}
}

// Predict scores feature vectors. Each vector must follow FeatureNames order.
func (f *Forecaster) Predict(x [][]float64) ([]float64, error) {
	if f.model == nil {
		return nil, ErrNotTrained
	}
	out := make([]float64, len(x))
	for i, row := range x {
		if len(row) != len(f.featureNames) {
			return nil, fmt.Errorf("model: feature vector %d has %d values, model expects %d",
				i, len(row), len(f.featureNames))
		}
		out[i] = f.model.predict(row)
	}
	return out, nil
}

// artifact is the serialized model file. It carries the exact feature-name
// ordering used at training time; prediction is meaningless without it.
type artifact struct {
	ModelName    string                    `json:"model_name"`
	ModelVersion string                    `json:"model_version"`
	TrainedAt    time.Time                 `json:"trained_at"`
	Params       Params                    `json:"params"`
	FeatureNames []string                  `json:"feature_names"`
	Importance   []dataset.ImportanceEntry `json:"feature_importance"`
	Model        *gbrt                     `json:"model"`
}

// Save writes the trained model to path. The artifact is immutable by
// convention: retraining saves a new file, never mutates an existing one.
func (f *Forecaster) Save(path string) error {
	if f.model == nil {
		return ErrNotTrained
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("model: create artifact dir: %w", err)
	}
	data, err := json.MarshalIndent(artifact{
		ModelName:    f.name,
		ModelVersion: f.version,
		TrainedAt:    f.trainedAt,
		Params:       f.params,
		FeatureNames: f.featureNames,
		Importance:   f.importance,
		Model:        f.model,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("model: marshal artifact: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("model: write artifact: %w", err)
	}
	f.log.Infow("model saved", "path", path, "trees", len(f.model.Trees))
	return nil
}

// Load restores a model previously written by Save. Predictions after a
// save/load round trip are identical to the in-memory model's.
func (f *Forecaster) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("model: read artifact %s: %w", path, err)
	}
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return fmt.Errorf("model: decode artifact %s: %w", path, err)
	}
	if a.Model == nil || len(a.FeatureNames) == 0 {
		return fmt.Errorf("model: artifact %s missing model or feature names", path)
	}
	f.name = a.ModelName
	f.version = a.ModelVersion
	f.trainedAt = a.TrainedAt
	f.params = a.Params
	f.featureNames = a.FeatureNames
	f.importance = a.Importance
	f.model = a.Model
	return nil
}

// normalizeImportance converts accumulated split gain into the persisted
// ranking: share of total gain, normalized to sum 100, sorted descending.
func normalizeImportance(columns []string, gain []float64) []dataset.ImportanceEntry {
	total := 0.0
	for _, g := range gain {
		total += g
	}
	entries := make([]dataset.ImportanceEntry, len(columns))
	for i, col := range columns {
		v := 0.0
		if total > 0 {
			v = gain[i] / total * 100
		}
		entries[i] = dataset.ImportanceEntry{Feature: col, Importance: v}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Importance > entries[j].Importance
	})
	return entries
}
