package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/meridian-labs/demandcast/internal/summary"
)

const demandSystemPrompt = `You are an expert demand forecasting analyst for retail operations.

CRITICAL DATA NOTES:
- All sales figures are WEEKLY aggregates, NOT daily. Each value covers one full week.
- When comparing forecasts to historical averages, compare weekly to weekly directly.
- Do NOT divide weekly figures by 7 to get daily estimates unless explicitly asked.
- Forecast dates are future dates beyond the observed data; historical dates are past observations.

Your role is to:
1. Analyze sales forecasts against historical data
2. Identify trends, patterns, and seasonality
3. Provide actionable recommendations for planning
4. Explain forecast drivers and confidence levels

Always provide clear, data-driven insights with specific recommendations and
the risk factors behind them. Format responses concisely for retail managers.`

const defaultDemandQuestion = "Analyze the sales forecast and provide insights on demand trends, patterns, and recommendations."

// Insight is one agent's analysis output.
type Insight struct {
	Agent       string    `json:"agent"`
	Response    string    `json:"response"`
	GeneratedAt time.Time `json:"generated_at"`
	Usage       Usage     `json:"usage"`
}

// DemandAgent analyzes forecast output against historical sales.
type DemandAgent struct {
	client Completer
}

// NewDemandAgent creates the demand analysis agent.
func NewDemandAgent(client Completer) *DemandAgent {
	return &DemandAgent{client: client}
}

// Analyze prompts the model with the forecast and historical summaries. An
// empty question falls back to the standing analysis request.
func (a *DemandAgent) Analyze(ctx context.Context, forecasts summary.ForecastSummary, hist summary.HistoricalSummary, question string) (Insight, error) {
	if question == "" {
		question = defaultDemandQuestion
	}

	p := newPromptContext()
	if forecasts.NumWeeks > 0 {
		p.section("FORECAST (weekly figures)")
		p.addMoney("total predicted weekly sales", forecasts.TotalPredicted)
		p.addMoney("average predicted weekly sales", forecasts.AvgPredicted)
		p.addMoney("minimum predicted weekly sales", forecasts.MinPredicted)
		p.addMoney("maximum predicted weekly sales", forecasts.MaxPredicted)
		p.addPeriod("forecast period", forecasts.PeriodStart, forecasts.PeriodEnd)
		p.add("weeks forecasted", forecasts.NumWeeks)
		p.add("store/department combinations", forecasts.NumSeries)
		for _, s := range forecasts.ByStore {
			p.add(fmt.Sprintf("store %d", s.StoreID),
				fmt.Sprintf("mean %s, total %s", money(s.Mean), money(s.Total)))
		}
	}
	if hist.NumWeeks > 0 {
		p.section("HISTORY (weekly figures)")
		p.addMoney("average weekly sales", hist.AvgSales)
		p.addMoney("median weekly sales", hist.MedianSales)
		p.addMoney("weekly sales std dev", hist.StdSales)
		p.addMoney("total historical sales", hist.TotalSales)
		p.addPeriod("historical period", hist.PeriodStart, hist.PeriodEnd)
		p.add("historical weeks", hist.NumWeeks)
		if t := hist.Trend; t != nil {
			p.section("RECENT TREND")
			p.addMoney("recent 8-week average", t.RecentAvg)
			p.addMoney("prior 8-week average", t.PriorAvg)
			p.add("change", fmt.Sprintf("%+.1f%%", t.ChangePct))
		}
	}

	response, usage, err := a.client.Complete(ctx, demandSystemPrompt, p.String()+"\n"+question)
	if err != nil {
		return Insight{}, err
	}
	return Insight{
		Agent:       "demand",
		Response:    response,
		GeneratedAt: time.Now().UTC(),
		Usage:       usage,
	}, nil
}
