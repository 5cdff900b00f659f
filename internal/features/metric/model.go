package metric

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SourceKind string

const (
	SourceInsight SourceKind = "insight" // native field on the insight row
	SourceObject  SourceKind = "object"  // field on the campaign object
	SourceDerived SourceKind = "derived" // computed from categorical breakdowns
	SourceCustom  SourceKind = "custom"  // user-authored formula
)

type DerivedKind string

const (
	// DerivedActionCount sums the counts of a configured set of action types
	DerivedActionCount DerivedKind = "action_count"
	// DerivedPurchaseCount computes round(spend / purchase cost). Counting
	// via cost keeps the figure consistent with the cost-per-result column
	// and avoids double counting across overlapping action types.
	DerivedPurchaseCount DerivedKind = "purchase_count"
	// DerivedPurchaseCost walks a priority list over cost_per_action_type
	// and returns the first present value; absent when none is present.
	DerivedPurchaseCost DerivedKind = "purchase_cost"

	// Legacy kinds kept for rules stored before the purchase-first rework
	DerivedBestResultCount DerivedKind = "best_result_count"
	DerivedBestResultCost  DerivedKind = "best_result_cost"
)

type Format string

const (
	FormatCurrency       Format = "currency"
	FormatCurrencyBudget Format = "currency_budget"
	FormatNumber         Format = "number"
	FormatNumber2        Format = "number2"
	FormatPercent        Format = "percent"
)

// Definition describes one metric the rule engine can evaluate
type Definition struct {
	Key            string      `json:"key" bson:"key"`
	Label          string      `json:"label" bson:"label"`
	Source         SourceKind  `json:"source" bson:"source"`
	Field          string      `json:"field,omitempty" bson:"field,omitempty"`     // insight source
	Derived        DerivedKind `json:"derived,omitempty" bson:"derived,omitempty"` // derived source
	ActionTypes    []string    `json:"action_types,omitempty" bson:"action_types,omitempty"`
	RequiredFields []string    `json:"required_fields,omitempty" bson:"required_fields,omitempty"`
	Formula        string      `json:"formula,omitempty" bson:"formula,omitempty"` // custom source
	Format         Format      `json:"format" bson:"format"`
}

// CustomMetric is a user-authored formula metric persisted in Mongo.
// Its catalog key is "custom:<hex id>".
type CustomMetric struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Label     string             `json:"label" bson:"label"`
	Formula   string             `json:"formula" bson:"formula"`
	Format    Format             `json:"format" bson:"format"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time          `json:"updated_at" bson:"updated_at"`
}

const customKeyPrefix = "custom:"

// Key returns the catalog key for the custom metric
func (m *CustomMetric) Key() string {
	return customKeyPrefix + m.ID.Hex()
}

// Definition converts the stored custom metric into a catalog definition
func (m *CustomMetric) Definition() Definition {
	format := m.Format
	if format == "" {
		format = FormatNumber2
	}
	return Definition{
		Key:            m.Key(),
		Label:          m.Label,
		Source:         SourceCustom,
		Formula:        m.Formula,
		Format:         format,
		RequiredFields: formulaRequiredFields,
	}
}

// formulaRequiredFields is the full variable context a formula may touch,
// so insights for custom metrics always request everything.
var formulaRequiredFields = []string{
	"spend", "impressions", "clicks", "ctr", "cpc", "cpm",
	"reach", "frequency", "actions", "cost_per_action_type",
}
