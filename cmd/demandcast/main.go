// Command demandcast runs the retail demand forecasting pipeline: schema
// migration, CSV ingestion, feature engineering, model training, forecast
// generation, and LLM-backed insight reports.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/meridian-labs/demandcast/internal/config"
	"github.com/meridian-labs/demandcast/internal/metrics"
	"github.com/meridian-labs/demandcast/internal/store"
	"github.com/meridian-labs/demandcast/pkg/otel"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "demandcast",
		Short: "Retail demand forecasting pipeline",
		Long: `Weekly retail demand forecasting: loads sales and indicator exports into
Postgres, engineers per-series features, trains a gradient boosted model with
early stopping, extrapolates forecasts with confidence bounds, and generates
LLM-backed insight reports over the results.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default config.yaml, env DEMANDCAST_CONFIG)")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(loadCmd())
	rootCmd.AddCommand(engineerCmd())
	rootCmd.AddCommand(trainCmd())
	rootCmd.AddCommand(forecastCmd())
	rootCmd.AddCommand(insightsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app bundles the shared runtime every subcommand needs.
type app struct {
	cfg config.Config
	log *zap.SugaredLogger
	st  *store.Store
	met *metrics.Metrics

	tp        *sdktrace.TracerProvider
	metricsHS *http.Server
}

// setup loads config and opens the shared resources. withDB is false for
// commands that must work before the database exists.
func setup(ctx context.Context, withDB bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, met: metrics.New()}

	if cfg.OTLPEndpoint != "" {
		otelCfg := otel.DefaultConfig("demandcast")
		otelCfg.CollectorEndpoint = cfg.OTLPEndpoint
		tp, err := otel.InitTracer(ctx, otelCfg)
		if err != nil {
			log.Warnw("tracing disabled", "error", err)
		} else {
			a.tp = tp
		}
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		a.metricsHS = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := a.metricsHS.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warnw("metrics server stopped", "error", err)
			}
		}()
	}

	if withDB {
		st, err := store.Open(ctx, cfg.DatabaseURL, log)
		if err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("connect to database (check database_url): %w", err)
		}
		a.st = st
	}
	return a, nil
}

func (a *app) close(ctx context.Context) {
	if a.st != nil {
		a.st.Close()
	}
	if a.metricsHS != nil {
		shutCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		a.metricsHS.Shutdown(shutCtx)
		cancel()
	}
	if a.tp != nil {
		if err := otel.Shutdown(ctx, a.tp); err != nil {
			a.log.Warnw("tracer shutdown failed", "error", err)
		}
	}
	a.log.Sync()
}

// observeStage records the duration of a pipeline stage.
func (a *app) observeStage(stage string, start time.Time) {
	a.met.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func newLogger(level string) (*zap.SugaredLogger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log_level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}
