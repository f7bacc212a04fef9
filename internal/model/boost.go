package model

import (
	"fmt"

	"github.com/meridian-labs/demandcast/internal/eval"
)

// Params are the boosting hyperparameters. They are persisted with every
// model artifact and logged to the run-metadata table.
type Params struct {
	NumRounds           int     `json:"num_rounds" yaml:"num_rounds"`
	LearningRate        float64 `json:"learning_rate" yaml:"learning_rate"`
	MaxDepth            int     `json:"max_depth" yaml:"max_depth"`
	MinSamplesLeaf      int     `json:"min_samples_leaf" yaml:"min_samples_leaf"`
	EarlyStoppingRounds int     `json:"early_stopping_rounds" yaml:"early_stopping_rounds"`
}

// DefaultParams returns the production training configuration.
func DefaultParams() Params {
	return Params{
		NumRounds:           500,
		LearningRate:        0.05,
		MaxDepth:            6,
		MinSamplesLeaf:      20,
		EarlyStoppingRounds: 50,
	}
}

// Map renders parameters for the metadata JSON column.
func (p Params) Map() map[string]any {
	return map[string]any{
		"num_rounds":            p.NumRounds,
		"learning_rate":         p.LearningRate,
		"max_depth":             p.MaxDepth,
		"min_samples_leaf":      p.MinSamplesLeaf,
		"early_stopping_rounds": p.EarlyStoppingRounds,
	}
}

// gbrt is a gradient-boosted ensemble of regression trees on squared error:
// prediction = BaseScore + lr · Σ tree_k(x) for the first BestRound trees.
type gbrt struct {
	BaseScore    float64          `json:"base_score"`
	LearningRate float64          `json:"learning_rate"`
	Trees        []regressionTree `json:"trees"`
	BestRound    int              `json:"best_round"`
}

// predict scores one sample using trees up to the early-stopping best round.
func (g *gbrt) predict(x []float64) float64 {
	p := g.BaseScore
	for i := 0; i < g.BestRound; i++ {
		p += g.LearningRate * g.Trees[i].predict(x)
	}
	return p
}

// fitGBRT trains the ensemble. The monitored objective is holiday-weighted
// MAE on the validation matrix when one is supplied, otherwise on the
// training matrix; training stops once the monitored WMAE has not improved
// for EarlyStoppingRounds rounds and BestRound rolls back to the best seen.
// gainByFeat accumulates split gain per column for the importance ranking.
func fitGBRT(train, val *Matrix, params Params, gainByFeat []float64) (*gbrt, eval.Metrics, error) {
	if train.Len() == 0 {
		return nil, eval.Metrics{}, &EmptyDatasetError{Train: 0, Val: val.Len()}
	}

	base := 0.0
	for _, y := range train.Y {
		base += y
	}
	base /= float64(train.Len())

	g := &gbrt{BaseScore: base, LearningRate: params.LearningRate}

	monitor := train
	if val.Len() > 0 {
		monitor = val
	}

	// Running predictions on train (for residuals) and on the monitored set.
	trainPred := make([]float64, train.Len())
	for i := range trainPred {
		trainPred[i] = base
	}
	monPred := make([]float64, monitor.Len())
	for i := range monPred {
		monPred[i] = base
	}

	residual := make([]float64, train.Len())
	allIdx := make([]int, train.Len())
	for i := range allIdx {
		allIdx[i] = i
	}

	builder := newTreeBuilder(train.X, treeParams{
		maxDepth:       params.MaxDepth,
		minSamplesLeaf: params.MinSamplesLeaf,
	}, gainByFeat)

	bestWMAE := 0.0
	bestRound := 0
	sinceBest := 0

	for round := 0; round < params.NumRounds; round++ {
		for i := range residual {
			residual[i] = train.Y[i] - trainPred[i]
		}

		tree := builder.build(residual, allIdx)
		g.Trees = append(g.Trees, *tree)

		for i := range trainPred {
			trainPred[i] += params.LearningRate * tree.predict(train.X[i])
		}
		for i := range monPred {
			monPred[i] += params.LearningRate * tree.predict(monitor.X[i])
		}

		wmae, err := eval.WMAE(monitor.Y, monPred, monitor.Holiday)
		if err != nil {
			return nil, eval.Metrics{}, fmt.Errorf("model: monitored metric: %w", err)
		}

		if round == 0 || wmae < bestWMAE {
			bestWMAE = wmae
			bestRound = round + 1
			sinceBest = 0
		} else {
			sinceBest++
			if params.EarlyStoppingRounds > 0 && sinceBest >= params.EarlyStoppingRounds {
				break
			}
		}
	}

	g.BestRound = bestRound

	// Final metrics on the monitored set at the best round.
	for i := range monPred {
		monPred[i] = g.predict(monitor.X[i])
	}
	metrics, err := eval.Evaluate(monitor.Y, monPred, monitor.Holiday)
	if err != nil {
		return nil, eval.Metrics{}, err
	}
	return g, metrics, nil
}
