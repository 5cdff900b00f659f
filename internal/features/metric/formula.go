package metric

import (
	"fmt"

	"go-adrules/internal/metaapi"

	"github.com/d5/tengo/v2"
)

// formulaVars builds the fixed variable context a formula may reference.
// Nothing else is bound: no stdlib modules, no ambient access.
func formulaVars(ins *metaapi.InsightRow) map[string]interface{} {
	field := func(name string) float64 {
		if ins == nil {
			return 0
		}
		return ins.Field(name)
	}

	actionMap := func(m metaapi.ActionMap) map[string]interface{} {
		out := make(map[string]interface{}, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out
	}

	var actions, costs metaapi.ActionMap
	if ins != nil {
		actions = ins.Actions
		costs = ins.CostPerActionType
	}

	return map[string]interface{}{
		"spend":                field("spend"),
		"impressions":          field("impressions"),
		"clicks":               field("clicks"),
		"ctr":                  field("ctr"),
		"cpc":                  field("cpc"),
		"cpm":                  field("cpm"),
		"reach":                field("reach"),
		"frequency":            field("frequency"),
		"actions":              actionMap(actions),
		"cost_per_action_type": actionMap(costs),
	}
}

// EvalFormula runs a user-authored arithmetic expression over the fixed
// variable context. The script is compiled fresh on every call; variables
// are copied in, so a formula cannot observe or mutate anything outside
// its own run.
func EvalFormula(formula string, ins *metaapi.InsightRow) (float64, error) {
	if formula == "" {
		return 0, fmt.Errorf("empty formula")
	}

	script := tengo.NewScript([]byte("__res__ := (" + formula + ")"))
	for name, val := range formulaVars(ins) {
		if err := script.Add(name, val); err != nil {
			return 0, err
		}
	}

	compiled, err := script.Run()
	if err != nil {
		return 0, fmt.Errorf("formula evaluation: %w", err)
	}

	res := compiled.Get("__res__")
	switch v := res.Value().(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("formula result is not numeric (%T)", v)
	}
}

// CheckFormula compiles a formula against the fixed variable context, so
// rule and metric authoring can reject broken expressions up front. Only
// compilation is checked; runtime failures still read as 0 at evaluation.
func CheckFormula(formula string) error {
	if formula == "" {
		return fmt.Errorf("empty formula")
	}
	script := tengo.NewScript([]byte("__res__ := (" + formula + ")"))
	for name, val := range formulaVars(&metaapi.InsightRow{}) {
		if err := script.Add(name, val); err != nil {
			return err
		}
	}
	if _, err := script.Compile(); err != nil {
		return fmt.Errorf("invalid formula: %w", err)
	}
	return nil
}
