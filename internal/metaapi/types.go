package metaapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Number tolerates the Graph API habit of returning numeric fields as strings
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*n = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*n = 0
			return nil
		}
		*n = Number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// ActionMap indexes a categorical breakdown (actions / cost_per_action_type)
// by action type. The wire shape is [{"action_type": ..., "value": ...}].
type ActionMap map[string]float64

func (m *ActionMap) UnmarshalJSON(data []byte) error {
	var entries []struct {
		ActionType string `json:"action_type"`
		Value      Number `json:"value"`
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	out := make(ActionMap, len(entries))
	for _, e := range entries {
		if e.ActionType == "" {
			continue
		}
		out[e.ActionType] = float64(e.Value)
	}
	*m = out
	return nil
}

// Campaign is the campaign object as returned by the /campaigns edge.
// Budget fields are in minor currency units (cents).
type Campaign struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Status           string `json:"status"`
	EffectiveStatus  string `json:"effective_status"`
	ConfiguredStatus string `json:"configured_status"`
	Objective        string `json:"objective"`
	BuyingType       string `json:"buying_type"`
	DailyBudget      Number `json:"daily_budget"`
	LifetimeBudget   Number `json:"lifetime_budget"`
	StartTime        string `json:"start_time"`
	StopTime         string `json:"stop_time"`
}

// InsightRow is one campaign-level insights record for a reporting window.
// Native numeric fields land in Fields keyed by their wire name; the two
// categorical breakdowns are kept separately.
type InsightRow struct {
	CampaignID        string
	AccountCurrency   string
	Actions           ActionMap
	CostPerActionType ActionMap
	Fields            map[string]float64
}

func (r *InsightRow) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.Fields = make(map[string]float64)

	for key, val := range raw {
		switch key {
		case "campaign_id":
			json.Unmarshal(val, &r.CampaignID)
		case "account_currency":
			json.Unmarshal(val, &r.AccountCurrency)
		case "actions":
			json.Unmarshal(val, &r.Actions)
		case "cost_per_action_type":
			json.Unmarshal(val, &r.CostPerActionType)
		case "date_start", "date_stop", "adset_id", "ad_id", "campaign_name":
			// identity/window fields we don't evaluate against
		default:
			var n Number
			if err := json.Unmarshal(val, &n); err == nil {
				r.Fields[key] = float64(n)
			}
		}
	}
	return nil
}

// Field returns a native numeric field; missing or non-numeric reads as 0.
func (r *InsightRow) Field(name string) float64 {
	if r == nil || r.Fields == nil {
		return 0
	}
	return r.Fields[name]
}

// GraphError is the error envelope the Graph API returns in response bodies
type GraphError struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      int    `json:"code"`
	Subcode   int    `json:"error_subcode"`
	FBTraceID string `json:"fbtrace_id"`
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("graph api error %d: %s", e.Code, e.Message)
}

// RateLimited reports whether the error is a throttling error worth retrying
func (e *GraphError) RateLimited() bool {
	switch e.Code {
	case 4, 17, 32, 613:
		return true
	}
	return e.Subcode == 2446079
}

// NoRetry reports token and permission errors that retrying cannot fix
func (e *GraphError) NoRetry() bool {
	if e.Code == 190 { // expired/invalid token
		return true
	}
	if e.Code == 200 || e.Code == 10 { // permission
		return true
	}
	if e.Code == 100 && e.Subcode == 33 { // unknown object / no access
		return true
	}
	return false
}
