package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/meridian-labs/demandcast/internal/agents"
	"github.com/meridian-labs/demandcast/internal/cache"
	"github.com/meridian-labs/demandcast/pkg/otel"
)

func insightsCmd() *cobra.Command {
	var (
		storeID int
		deptID  int
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Generate an LLM-backed analysis of the current forecast",
		Long: `Runs the demand, inventory, and anomaly agents over the current forecast
and historical sales, optionally scoped to one store and department. Requires
an Anthropic API key; reports are cached until the next pipeline run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx, true)
			if err != nil {
				return err
			}
			defer a.close(ctx)
			defer a.observeStage("insights", time.Now())

			ctx, span := otel.StartSpan(ctx, tracerName, "insights",
				otel.AttrStoreID.Int(storeID), otel.AttrDeptID.Int(deptID))
			defer span.End()

			client, err := agents.NewClient(a.cfg.Agents.AnthropicAPIKey, a.cfg.Agents.Model, a.log)
			if errors.Is(err, agents.ErrDisabled) {
				return fmt.Errorf("insights need an API key: set ANTHROPIC_API_KEY or agents.anthropic_api_key")
			}
			if err != nil {
				return err
			}

			summaries, err := cache.New(ctx, cacheOptions(a))
			if err != nil {
				return err
			}
			defer summaries.Close()

			cacheKey := fmt.Sprintf("insights:%d:%d", storeID, deptID)
			if cached, ok, err := summaries.Get(ctx, cacheKey); err != nil {
				a.log.Warnw("summary cache read failed", "error", err)
			} else if ok {
				a.met.CacheHits.Inc()
				a.log.Infow("serving cached insight report", "key", cacheKey)
				return printReportBytes(cached, asJSON)
			} else {
				a.met.CacheMisses.Inc()
			}

			forecasts, err := a.st.LoadForecasts(ctx)
			if err != nil {
				otel.RecordError(span, err)
				return err
			}
			if len(forecasts) == 0 {
				return fmt.Errorf("no forecasts found; run the forecast stage first")
			}
			sales, err := a.st.LoadSales(ctx)
			if err != nil {
				otel.RecordError(span, err)
				return err
			}

			assumptions := agents.PlanningAssumptions{
				ServiceLevel: a.cfg.Agents.ServiceLevel,
				LeadTimeDays: a.cfg.Agents.LeadTimeDays,
			}
			orch := agents.NewOrchestrator(client, assumptions, a.log)
			report := orch.AnalyzeForecast(ctx, forecasts, sales,
				agents.Scope{StoreID: storeID, DeptID: deptID})

			a.met.AnomaliesFound.Set(float64(report.Anomalies))
			a.met.AgentTokensIn.Add(float64(report.Usage.InputTokens))
			a.met.AgentTokensOut.Add(float64(report.Usage.OutputTokens))
			for range report.Errs {
				a.met.AgentFailures.WithLabelValues("orchestrator").Inc()
			}
			for _, ag := range []struct {
				name    string
				insight *agents.Insight
			}{
				{"demand", report.Demand},
				{"inventory", report.Inventory},
				{"anomaly", report.Anomaly},
			} {
				outcome := "agent completed"
				if ag.insight == nil {
					outcome = "agent failed"
				}
				span.AddEvent(outcome, trace.WithAttributes(otel.AttrAgent.String(ag.name)))
			}
			if report.Demand == nil && report.Inventory == nil && report.Anomaly == nil {
				return fmt.Errorf("all agents failed; see log for details")
			}

			// Only complete reports are cached; a partial one should be
			// retried, not replayed.
			if len(report.Errs) == 0 {
				if data, err := json.Marshal(report); err == nil {
					if err := summaries.Set(ctx, cacheKey, data); err != nil {
						a.log.Warnw("summary cache write failed", "error", err)
					}
				}
			}

			data, err := json.Marshal(report)
			if err != nil {
				return err
			}
			return printReportBytes(data, asJSON)
		},
	}
	cmd.Flags().IntVar(&storeID, "store", 0, "limit analysis to one store")
	cmd.Flags().IntVar(&deptID, "dept", 0, "limit analysis to one department")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the raw report JSON")
	return cmd
}

func printReportBytes(data []byte, asJSON bool) error {
	if asJSON {
		fmt.Println(string(data))
		return nil
	}
	var report agents.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return fmt.Errorf("decode report: %w", err)
	}

	fmt.Printf("=== FORECAST ANALYSIS (%s) ===\n", report.GeneratedAt.Format(time.RFC3339))
	fmt.Printf("Anomalies detected: %d\n", report.Anomalies)
	printInsight("DEMAND", report.Demand)
	printInsight("INVENTORY", report.Inventory)
	printInsight("ANOMALIES", report.Anomaly)
	return nil
}

func printInsight(title string, in *agents.Insight) {
	fmt.Printf("\n--- %s ---\n", title)
	if in == nil {
		fmt.Println("(unavailable)")
		return
	}
	fmt.Println(in.Response)
}
