package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/meridian-labs/demandcast/internal/anomaly"
	"github.com/meridian-labs/demandcast/internal/summary"
)

const anomalySystemPrompt = `You are an expert anomaly triage analyst for retail sales data.

CRITICAL DATA NOTES:
- All sales figures are WEEKLY aggregates, NOT daily.
- Anomalies were flagged by a statistical z-score scan; your job is to
  interpret them, not to re-detect them.

Your role is to:
1. Distinguish normal variation from true anomalies
2. Assess severity (low/medium/high/critical) and business impact
3. Suggest plausible root causes
4. Recommend investigation steps

Be precise with numbers and dates. Prioritize actionable findings.`

const defaultAnomalyQuestion = "Analyze the detected anomalies: identify patterns, assess severity, and recommend investigation steps."

// AnomalyAgent interprets flagged sales observations.
type AnomalyAgent struct {
	client Completer
}

// NewAnomalyAgent creates the anomaly triage agent.
func NewAnomalyAgent(client Completer) *AnomalyAgent {
	return &AnomalyAgent{client: client}
}

// Analyze prompts the model with the scan result and the sales summary the
// scan ran over.
func (a *AnomalyAgent) Analyze(ctx context.Context, result anomaly.Result, hist summary.HistoricalSummary, question string) (Insight, error) {
	if question == "" {
		question = defaultAnomalyQuestion
	}

	p := newPromptContext()
	if hist.NumRecords > 0 {
		p.section("SCANNED DATA (weekly figures)")
		p.add("records scanned", hist.NumRecords)
		p.addPeriod("period", hist.PeriodStart, hist.PeriodEnd)
		p.addMoney("average weekly sales", hist.AvgSales)
		p.addMoney("weekly sales std dev", hist.StdSales)
	}
	p.section("SCAN RESULT")
	p.add("detection threshold (z-score)", result.Threshold)
	p.add("anomalies flagged", result.Total)
	for _, an := range result.Anomalies {
		p.add(fmt.Sprintf("store %d dept %d on %s", an.StoreID, an.DeptID, an.Date.Format(dateLayout)),
			fmt.Sprintf("sales %s, z-score %.2f, deviation %s",
				money(an.Sales), an.ZScore, money(an.Deviation)))
	}

	response, usage, err := a.client.Complete(ctx, anomalySystemPrompt, p.String()+"\n"+question)
	if err != nil {
		return Insight{}, err
	}
	return Insight{
		Agent:       "anomaly",
		Response:    response,
		GeneratedAt: time.Now().UTC(),
		Usage:       usage,
	}, nil
}
