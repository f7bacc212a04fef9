package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/meridian-labs/demandcast/internal/cache"
	"github.com/meridian-labs/demandcast/internal/features"
	"github.com/meridian-labs/demandcast/internal/forecast"
	"github.com/meridian-labs/demandcast/internal/ingest"
	"github.com/meridian-labs/demandcast/internal/model"
	"github.com/meridian-labs/demandcast/internal/registry"
	"github.com/meridian-labs/demandcast/pkg/otel"
)

const tracerName = "demandcast/pipeline"

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx, true)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			if err := a.st.Migrate(ctx); err != nil {
				return err
			}
			a.log.Infow("schema migrated")
			return nil
		},
	}
}

func loadCmd() *cobra.Command {
	var dataDir string
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load the CSV exports into the database",
		Long: `Reads stores.csv, train.csv, and features.csv from the configured data
directory and bulk-loads them. Run migrate first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx, true)
			if err != nil {
				return err
			}
			defer a.close(ctx)
			defer a.observeStage("load", time.Now())

			ctx, span := otel.StartSpan(ctx, tracerName, "load")
			defer span.End()

			dir := dataDir
			if dir == "" {
				dir = a.cfg.DataDir
			}

			stores, err := ingest.ReadStores(filepath.Join(dir, "stores.csv"))
			if err != nil {
				otel.RecordError(span, err)
				return err
			}
			if _, err := a.st.InsertStores(ctx, stores); err != nil {
				otel.RecordError(span, err)
				return err
			}
			a.met.RowsIngested.WithLabelValues("stores").Add(float64(len(stores)))
			a.log.Infow("stores loaded", "rows", len(stores))

			sales, err := ingest.ReadSales(filepath.Join(dir, "train.csv"))
			if err != nil {
				otel.RecordError(span, err)
				return err
			}
			if _, err := a.st.InsertSales(ctx, sales); err != nil {
				otel.RecordError(span, err)
				return err
			}
			a.met.RowsIngested.WithLabelValues("raw_sales").Add(float64(len(sales)))
			a.log.Infow("sales loaded", "rows", len(sales))

			indicators, err := ingest.ReadIndicators(filepath.Join(dir, "features.csv"))
			if err != nil {
				otel.RecordError(span, err)
				return err
			}
			if _, err := a.st.InsertIndicators(ctx, indicators); err != nil {
				otel.RecordError(span, err)
				return err
			}
			a.met.RowsIngested.WithLabelValues("features").Add(float64(len(indicators)))
			a.log.Infow("indicators loaded", "rows", len(indicators))

			return nil
		},
	}
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "directory with the CSV exports (default from config)")
	return cmd
}

func engineerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "engineer",
		Short: "Engineer model features from the loaded data",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx, true)
			if err != nil {
				return err
			}
			defer a.close(ctx)
			defer a.observeStage("engineer", time.Now())

			ctx, span := otel.StartSpan(ctx, tracerName, "engineer")
			defer span.End()

			sales, err := a.st.LoadSales(ctx)
			if err != nil {
				otel.RecordError(span, err)
				return err
			}
			if len(sales) == 0 {
				return fmt.Errorf("no sales data found; run the load stage first")
			}
			indicators, err := a.st.LoadIndicators(ctx)
			if err != nil {
				otel.RecordError(span, err)
				return err
			}
			stores, err := a.st.LoadStores(ctx)
			if err != nil {
				otel.RecordError(span, err)
				return err
			}

			rows, err := features.NewPipeline(a.log).Engineer(sales, indicators, stores)
			if err != nil {
				otel.RecordError(span, err)
				return err
			}
			if err := a.st.ReplaceEngineeredFeatures(ctx, rows); err != nil {
				otel.RecordError(span, err)
				return err
			}
			span.SetAttributes(otel.StageAttributes("engineer", len(rows))...)
			a.met.FeaturesBuilt.Add(float64(len(rows)))

			invalidateSummaries(ctx, a)
			return nil
		},
	}
}

func trainCmd() *cobra.Command {
	var valWeeks int
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the forecasting model on the engineered features",
		Long: `Splits the engineered features into training and validation windows by
date, fits the gradient boosted model with early stopping on holiday-weighted
error, saves the artifact, and records the run in the metadata log.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx, true)
			if err != nil {
				return err
			}
			defer a.close(ctx)
			defer a.observeStage("train", time.Now())

			ctx, span := otel.StartSpan(ctx, tracerName, "train")
			defer span.End()

			rows, err := a.st.LoadEngineeredFeatures(ctx)
			if err != nil {
				otel.RecordError(span, err)
				return err
			}
			if len(rows) == 0 {
				return fmt.Errorf("no engineered features found; run the engineer stage first")
			}

			if valWeeks <= 0 {
				valWeeks = a.cfg.Model.ValidationWeeks
			}
			trainRows, valRows, err := model.Split(rows, valWeeks)
			if err != nil {
				otel.RecordError(span, err)
				return err
			}

			f := model.NewForecaster(a.cfg.Model.Params, a.log)
			f.SetMetadataSink(a.st)
			m, err := f.Train(ctx, trainRows, valRows)
			if err != nil {
				otel.RecordError(span, err)
				return err
			}

			path := filepath.Join(a.cfg.Model.ArtifactDir,
				fmt.Sprintf("%s_%s.json", f.Name(), time.Now().UTC().Format("20060102T150405")))
			if err := f.Save(path); err != nil {
				otel.RecordError(span, err)
				return err
			}

			span.SetAttributes(otel.ModelAttributes(f.Name(), f.Version())...)
			span.SetAttributes(otel.AttrWMAE.Float64(m.WMAE), otel.AttrBestRound.Int(f.BestRound()))
			a.met.TrainingRuns.Inc()
			a.met.TrainingWMAE.Set(m.WMAE)
			a.met.TrainingRounds.Set(float64(f.BestRound()))

			a.log.Infow("model trained and saved",
				"artifact", path,
				"wmae", m.WMAE, "mae", m.MAE, "rmse", m.RMSE,
				"best_round", f.BestRound(),
			)
			return nil
		},
	}
	cmd.Flags().IntVar(&valWeeks, "val-weeks", 0, "trailing weeks held out for validation (default from config)")
	return cmd
}

func forecastCmd() *cobra.Command {
	var horizon int
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Generate forward forecasts from the trained model",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx, true)
			if err != nil {
				return err
			}
			defer a.close(ctx)
			defer a.observeStage("forecast", time.Now())

			ctx, span := otel.StartSpan(ctx, tracerName, "forecast")
			defer span.End()

			reg, err := registry.New(modelSource(a), a.log)
			if err != nil {
				return err
			}
			f, err := reg.Current()
			if err != nil {
				otel.RecordError(span, err)
				return err
			}

			latest, err := a.st.LatestFeatures(ctx)
			if err != nil {
				otel.RecordError(span, err)
				return err
			}

			if horizon <= 0 {
				horizon = a.cfg.Forecast.HorizonWeeks
			}
			rows, err := forecast.NewExtrapolator(a.log).Extrapolate(latest, f, horizon)
			if err != nil {
				otel.RecordError(span, err)
				return err
			}
			if err := a.st.ReplaceForecasts(ctx, rows); err != nil {
				otel.RecordError(span, err)
				return err
			}

			span.SetAttributes(
				otel.AttrHorizonWeeks.Int(horizon),
				otel.AttrSeries.Int(len(latest)),
				otel.AttrRows.Int(len(rows)),
			)
			a.met.ForecastsSaved.Add(float64(len(rows)))

			invalidateSummaries(ctx, a)
			return nil
		},
	}
	cmd.Flags().IntVar(&horizon, "horizon", 0, "weeks to forecast (default from config)")
	return cmd
}

// modelSource builds the configured artifact source: a pinned file when one
// is set, otherwise the newest artifact in the directory.
func modelSource(a *app) registry.Source {
	if a.cfg.Model.ArtifactPath != "" {
		return registry.FileSource{Path: a.cfg.Model.ArtifactPath}
	}
	return registry.DirSource{Dir: a.cfg.Model.ArtifactDir}
}

// invalidateSummaries drops cached summaries after a stage replaced data they
// were computed from. Only a shared backend needs this; a fresh process has
// an empty memory cache anyway.
func invalidateSummaries(ctx context.Context, a *app) {
	if cache.Backend(a.cfg.Cache.Backend) != cache.BackendRedis {
		return
	}
	c, err := cache.New(ctx, cacheOptions(a))
	if err != nil {
		a.log.Warnw("summary cache unavailable, skipping invalidation", "error", err)
		return
	}
	defer c.Close()
	if err := c.Invalidate(ctx); err != nil {
		a.log.Warnw("summary cache invalidation failed", "error", err)
	}
}

func cacheOptions(a *app) cache.Options {
	return cache.Options{
		Backend:   cache.Backend(a.cfg.Cache.Backend),
		Size:      a.cfg.Cache.Size,
		TTL:       a.cfg.Cache.TTL.Std(),
		RedisAddr: a.cfg.Cache.RedisAddr,
	}
}
