package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/meridian-labs/demandcast/internal/summary"
)

const inventorySystemPrompt = `You are an expert inventory optimization analyst for retail operations.

CRITICAL DATA NOTES:
- All sales and demand figures are WEEKLY aggregates, NOT daily.
- To estimate daily demand, divide weekly figures by 7.
- Lead times are given in days while demand is weekly; convert appropriately
  when computing reorder points and safety stock.

Your role is to:
1. Recommend stock levels and reorder timing from the demand forecast
2. Identify stockout and overstock risks
3. Balance holding costs against service levels
4. Give store- and department-specific recommendations where the data allows

Always provide specific inventory targets, risk assessments, and next steps,
with clear sections for easy implementation.`

const defaultInventoryQuestion = "Provide inventory optimization recommendations based on the forecast."

// PlanningAssumptions parameterize the inventory recommendations.
type PlanningAssumptions struct {
	ServiceLevel float64 `json:"service_level" yaml:"service_level"`
	LeadTimeDays int     `json:"lead_time_days" yaml:"lead_time_days"`
}

// DefaultPlanningAssumptions returns the standing replenishment policy.
func DefaultPlanningAssumptions() PlanningAssumptions {
	return PlanningAssumptions{ServiceLevel: 0.95, LeadTimeDays: 7}
}

// InventoryAgent turns the demand forecast into stocking recommendations.
type InventoryAgent struct {
	client Completer
}

// NewInventoryAgent creates the inventory planning agent.
func NewInventoryAgent(client Completer) *InventoryAgent {
	return &InventoryAgent{client: client}
}

// Analyze prompts the model with the forecast demand profile and planning
// assumptions.
func (a *InventoryAgent) Analyze(ctx context.Context, forecasts summary.ForecastSummary, assumptions PlanningAssumptions, question string) (Insight, error) {
	if question == "" {
		question = defaultInventoryQuestion
	}

	p := newPromptContext()
	if forecasts.NumWeeks > 0 {
		p.section("FORECAST DEMAND (weekly figures)")
		p.addMoney("total forecasted demand", forecasts.TotalPredicted)
		p.addMoney("average weekly demand", forecasts.AvgPredicted)
		p.addPeriod("forecast period", forecasts.PeriodStart, forecasts.PeriodEnd)
		p.add("forecast weeks", forecasts.NumWeeks)
		p.add("stores", forecasts.NumStores)
		p.add("departments", forecasts.NumDepts)
		for _, s := range forecasts.ByStore {
			p.add(fmt.Sprintf("store %d weekly demand", s.StoreID),
				fmt.Sprintf("mean %s, std %s", money(s.Mean), money(s.Std)))
		}
	}
	p.section("PLANNING ASSUMPTIONS")
	p.add("service level target", fmt.Sprintf("%.0f%%", assumptions.ServiceLevel*100))
	p.add("lead time", fmt.Sprintf("%d days (%.1f weeks)",
		assumptions.LeadTimeDays, float64(assumptions.LeadTimeDays)/7))

	response, usage, err := a.client.Complete(ctx, inventorySystemPrompt, p.String()+"\n"+question)
	if err != nil {
		return Insight{}, err
	}
	return Insight{
		Agent:       "inventory",
		Response:    response,
		GeneratedAt: time.Now().UTC(),
		Usage:       usage,
	}, nil
}
