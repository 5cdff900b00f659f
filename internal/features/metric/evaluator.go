package metric

import (
	"math"

	"go-adrules/internal/metaapi"
)

// Evaluate computes a metric value for one campaign and its insight row.
// The second return value is false only when a priority-cost lookup finds
// no entry at all (the "absent" signal); every other path yields a number.
// Evaluation never fails: formula errors and non-finite results read as 0.
func Evaluate(def *Definition, campaign *metaapi.Campaign, ins *metaapi.InsightRow) (float64, bool) {
	if def == nil {
		return 0, true
	}

	switch def.Source {
	case SourceInsight:
		return ins.Field(def.Field), true

	case SourceObject:
		return evaluateObject(def, campaign), true

	case SourceDerived:
		return evaluateDerived(def, ins)

	case SourceCustom:
		v, err := EvalFormula(def.Formula, ins)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, true
		}
		return v, true
	}

	return 0, true
}

func evaluateObject(def *Definition, campaign *metaapi.Campaign) float64 {
	if campaign == nil {
		return 0
	}
	switch def.Key {
	case "daily_budget":
		// budgets are minor currency units
		return float64(campaign.DailyBudget) / 100
	case "lifetime_budget":
		return float64(campaign.LifetimeBudget) / 100
	}
	return 0
}

func evaluateDerived(def *Definition, ins *metaapi.InsightRow) (float64, bool) {
	var actions, costs metaapi.ActionMap
	if ins != nil {
		actions = ins.Actions
		costs = ins.CostPerActionType
	}

	switch def.Derived {
	case DerivedActionCount:
		sum := 0.0
		for _, t := range def.ActionTypes {
			sum += actions[t]
		}
		return sum, true

	case DerivedPurchaseCount:
		// round(spend / purchase cost); no cost entry means 0 results
		cost, ok := firstPresent(costs, purchasePriority)
		if !ok || cost <= 0 {
			return 0, true
		}
		return math.Round(ins.Field("spend") / cost), true

	case DerivedPurchaseCost:
		cost, ok := firstPresent(costs, purchasePriority)
		if !ok {
			return 0, false
		}
		return cost, true

	case DerivedBestResultCount:
		for _, group := range bestResultGroups {
			sum := 0.0
			for _, t := range group {
				sum += actions[t]
			}
			if sum > 0 {
				return sum, true
			}
		}
		return 0, true

	case DerivedBestResultCost:
		cost, ok := firstPresent(costs, bestResultCostOrder)
		if !ok {
			return 0, false
		}
		return cost, true
	}

	return 0, true
}

func firstPresent(m metaapi.ActionMap, order []string) (float64, bool) {
	for _, key := range order {
		if v, ok := m[key]; ok {
			return v, true
		}
	}
	return 0, false
}
