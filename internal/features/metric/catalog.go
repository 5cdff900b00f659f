package metric

import (
	"sort"
	"strings"
)

// purchasePriority is the fixed lookup order for purchase cost. First
// present entry wins; entries are never summed.
var purchasePriority = []string{
	"purchase",
	"offsite_conversion.fb_pixel_purchase",
	"omni_purchase",
	"onsite_conversion.purchase",
	"app_custom_event.fb_mobile_purchase",
}

// bestResultGroups is the legacy result ordering: first group with a
// non-zero summed count wins.
var bestResultGroups = [][]string{
	{"purchase", "omni_purchase", "offsite_conversion.fb_pixel_purchase"},
	{"lead", "omni_lead"},
	{"initiate_checkout", "omni_initiated_checkout"},
	{"link_click"},
}

// bestResultCostOrder is the legacy cost lookup priority
var bestResultCostOrder = []string{
	"purchase", "omni_purchase", "offsite_conversion.fb_pixel_purchase",
	"lead", "omni_lead", "initiate_checkout", "omni_initiated_checkout",
	"link_click",
}

// builtinCatalog returns the fixed metric definitions. Only comparable
// (numeric) columns appear here; object fields are limited to budgets.
func builtinCatalog() []Definition {
	return []Definition{
		{Key: "ic", Label: "Initiated Checkouts", Source: SourceDerived, Derived: DerivedActionCount,
			ActionTypes:    []string{"initiate_checkout", "omni_initiated_checkout"},
			RequiredFields: []string{"actions"}, Format: FormatNumber},
		{Key: "results", Label: "Results", Source: SourceDerived, Derived: DerivedPurchaseCount,
			RequiredFields: []string{"cost_per_action_type", "spend"}, Format: FormatNumber},
		{Key: "cpr", Label: "Cost per Result", Source: SourceDerived, Derived: DerivedPurchaseCost,
			RequiredFields: []string{"cost_per_action_type"}, Format: FormatCurrency},
		{Key: "spend", Label: "Spend", Source: SourceInsight, Field: "spend", Format: FormatCurrency},
		{Key: "impressions", Label: "Impressions", Source: SourceInsight, Field: "impressions", Format: FormatNumber},
		{Key: "reach", Label: "Reach", Source: SourceInsight, Field: "reach", Format: FormatNumber},
		{Key: "clicks", Label: "Clicks", Source: SourceInsight, Field: "clicks", Format: FormatNumber},
		{Key: "ctr", Label: "CTR", Source: SourceInsight, Field: "ctr", Format: FormatPercent},
		{Key: "cpc", Label: "CPC", Source: SourceInsight, Field: "cpc", Format: FormatCurrency},
		{Key: "cpm", Label: "CPM", Source: SourceInsight, Field: "cpm", Format: FormatCurrency},
		{Key: "frequency", Label: "Frequency", Source: SourceInsight, Field: "frequency", Format: FormatNumber2},
		{Key: "daily_budget", Label: "Daily Budget", Source: SourceObject, Format: FormatCurrencyBudget},
		{Key: "lifetime_budget", Label: "Lifetime Budget", Source: SourceObject, Format: FormatCurrencyBudget},
	}
}

// displayOrder pins common metrics to the top of the catalog listing
var displayOrder = []string{
	"spend", "results", "cpr", "ic", "cpc", "cpm", "ctr",
	"clicks", "impressions", "reach", "frequency",
	"daily_budget", "lifetime_budget",
}

func sortCatalog(defs []Definition) {
	rank := func(key string) int {
		for i, k := range displayOrder {
			if k == key {
				return i
			}
		}
		return len(displayOrder) + 1
	}
	sort.SliceStable(defs, func(i, j int) bool {
		ri, rj := rank(defs[i].Key), rank(defs[j].Key)
		if ri != rj {
			return ri < rj
		}
		return defs[i].Label < defs[j].Label
	})
}

// canonicalKey resolves aliases used by rules stored before key renames
func canonicalKey(key string) string {
	if key == "cost_per_result" {
		return "cpr"
	}
	return key
}

func isCustomKey(key string) bool {
	return strings.HasPrefix(key, customKeyPrefix)
}
