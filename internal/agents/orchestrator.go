package agents

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/meridian-labs/demandcast/internal/anomaly"
	"github.com/meridian-labs/demandcast/internal/dataset"
	"github.com/meridian-labs/demandcast/internal/summary"
)

// Scope optionally narrows an analysis to one store and/or department. Zero
// means no filter.
type Scope struct {
	StoreID int
	DeptID  int
}

func (s Scope) matchForecast(r *dataset.ForecastRow) bool {
	return (s.StoreID == 0 || r.StoreID == s.StoreID) &&
		(s.DeptID == 0 || r.DeptID == s.DeptID)
}

func (s Scope) matchSales(r *dataset.SalesRecord) bool {
	return (s.StoreID == 0 || r.StoreID == s.StoreID) &&
		(s.DeptID == 0 || r.DeptID == s.DeptID)
}

// Report bundles the insights of one orchestrated run. An agent that failed
// leaves its entry nil; Errs carries the reasons.
type Report struct {
	Demand      *Insight  `json:"demand,omitempty"`
	Inventory   *Insight  `json:"inventory,omitempty"`
	Anomaly     *Insight  `json:"anomaly,omitempty"`
	Anomalies   int       `json:"anomalies_detected"`
	GeneratedAt time.Time `json:"generated_at"`
	Usage       Usage     `json:"usage"`

	Errs []error `json:"-"`
}

// Orchestrator runs the three agents over one forecast run. Agent failures
// are independent: one agent erroring out does not suppress the others'
// insights.
type Orchestrator struct {
	demand      *DemandAgent
	inventory   *InventoryAgent
	anomalyA    *AnomalyAgent
	detector    *anomaly.Detector
	assumptions PlanningAssumptions
	log         *zap.SugaredLogger
}

// NewOrchestrator wires the agents over a shared client.
func NewOrchestrator(client Completer, assumptions PlanningAssumptions, log *zap.SugaredLogger) *Orchestrator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Orchestrator{
		demand:      NewDemandAgent(client),
		inventory:   NewInventoryAgent(client),
		anomalyA:    NewAnomalyAgent(client),
		detector:    anomaly.NewDetector(anomaly.DefaultThreshold),
		assumptions: assumptions,
		log:         log,
	}
}

// AnalyzeForecast runs all agents sequentially over the scoped data. The
// shared client is rate-limited, so fanning the calls out would only queue
// them anyway.
func (o *Orchestrator) AnalyzeForecast(ctx context.Context, forecasts []dataset.ForecastRow, sales []dataset.SalesRecord, scope Scope) Report {
	forecasts = filterForecasts(forecasts, scope)
	sales = filterSales(sales, scope)

	fsum := summary.SummarizeForecasts(forecasts)
	hsum := summary.SummarizeSales(sales)
	scan := o.detector.Detect(sales)

	report := Report{
		Anomalies:   scan.Total,
		GeneratedAt: time.Now().UTC(),
	}

	if in, err := o.demand.Analyze(ctx, fsum, hsum, ""); err != nil {
		o.log.Errorw("demand agent failed", "error", err)
		report.Errs = append(report.Errs, err)
	} else {
		report.Demand = &in
		report.Usage.Add(in.Usage)
	}

	if in, err := o.inventory.Analyze(ctx, fsum, o.assumptions, ""); err != nil {
		o.log.Errorw("inventory agent failed", "error", err)
		report.Errs = append(report.Errs, err)
	} else {
		report.Inventory = &in
		report.Usage.Add(in.Usage)
	}

	if in, err := o.anomalyA.Analyze(ctx, scan, hsum, ""); err != nil {
		o.log.Errorw("anomaly agent failed", "error", err)
		report.Errs = append(report.Errs, err)
	} else {
		report.Anomaly = &in
		report.Usage.Add(in.Usage)
	}

	o.log.Infow("forecast analysis complete",
		"anomalies", scan.Total,
		"failures", len(report.Errs),
		"tokens_in", report.Usage.InputTokens,
		"tokens_out", report.Usage.OutputTokens,
	)
	return report
}

func filterForecasts(rows []dataset.ForecastRow, scope Scope) []dataset.ForecastRow {
	if scope == (Scope{}) {
		return rows
	}
	var out []dataset.ForecastRow
	for i := range rows {
		if scope.matchForecast(&rows[i]) {
			out = append(out, rows[i])
		}
	}
	return out
}

func filterSales(rows []dataset.SalesRecord, scope Scope) []dataset.SalesRecord {
	if scope == (Scope{}) {
		return rows
	}
	var out []dataset.SalesRecord
	for i := range rows {
		if scope.matchSales(&rows[i]) {
			out = append(out, rows[i])
		}
	}
	return out
}
