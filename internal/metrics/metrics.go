// Package metrics registers the Prometheus instrumentation for the
// forecasting pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	RowsIngested    *prometheus.CounterVec
	FeaturesBuilt   prometheus.Counter
	ForecastsSaved  prometheus.Counter
	TrainingRuns    prometheus.Counter
	TrainingWMAE    prometheus.Gauge
	TrainingRounds  prometheus.Gauge
	StageDuration   *prometheus.HistogramVec
	AgentFailures   *prometheus.CounterVec
	AgentTokensIn   prometheus.Counter
	AgentTokensOut  prometheus.Counter
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	AnomaliesFound  prometheus.Gauge
}

// New creates and registers all collectors on the default registry.
func New() *Metrics {
	return &Metrics{
		RowsIngested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "demandcast_rows_ingested_total",
				Help: "Rows loaded from CSV exports, labeled by table",
			},
			[]string{"table"},
		),
		FeaturesBuilt: promauto.NewCounter(prometheus.CounterOpts{
			Name: "demandcast_features_built_total",
			Help: "Engineered feature rows written",
		}),
		ForecastsSaved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "demandcast_forecasts_saved_total",
			Help: "Forecast rows written across generation runs",
		}),
		TrainingRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "demandcast_training_runs_total",
			Help: "Completed training runs",
		}),
		TrainingWMAE: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "demandcast_training_wmae",
			Help: "Validation WMAE of the most recent training run",
		}),
		TrainingRounds: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "demandcast_training_best_round",
			Help: "Boosting rounds kept by early stopping in the most recent run",
		}),
		StageDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "demandcast_stage_duration_seconds",
				Help:    "Wall-clock duration of pipeline stages",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"stage"},
		),
		AgentFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "demandcast_agent_failures_total",
				Help: "Insight agent invocations that returned an error",
			},
			[]string{"agent"},
		),
		AgentTokensIn: promauto.NewCounter(prometheus.CounterOpts{
			Name: "demandcast_agent_input_tokens_total",
			Help: "Prompt tokens consumed by the insight agents",
		}),
		AgentTokensOut: promauto.NewCounter(prometheus.CounterOpts{
			Name: "demandcast_agent_output_tokens_total",
			Help: "Completion tokens produced by the insight agents",
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "demandcast_summary_cache_hits_total",
			Help: "Summary cache lookups served from cache",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "demandcast_summary_cache_misses_total",
			Help: "Summary cache lookups that fell through to recompute",
		}),
		AnomaliesFound: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "demandcast_anomalies_found",
			Help: "Anomalies flagged by the most recent scan",
		}),
	}
}
