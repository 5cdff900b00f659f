package rule

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

type CampaignScope string

const (
	ScopeAll    CampaignScope = "ALL"
	ScopeActive CampaignScope = "ACTIVE"
	ScopePaused CampaignScope = "PAUSED"
)

type ScheduleMode string

const (
	// ScheduleAlways runs on a fixed interval, around the clock
	ScheduleAlways ScheduleMode = "ALWAYS"
	// ScheduleAt runs once per calendar day at a fixed time
	ScheduleAt ScheduleMode = "AT"
	// ScheduleWindow runs on an interval, but only inside a daily time
	// window; the window may cross midnight
	ScheduleWindow ScheduleMode = "WINDOW"
)

type ActionType string

const (
	ActionPause    ActionType = "PAUSE"
	ActionActivate ActionType = "ACTIVATE"
)

type Operator string

const (
	OperatorGreater Operator = ">"
	OperatorLess    Operator = "<"
	OperatorEqual   Operator = "="
)

// LinkedAccount is an ad account snapshot taken when the rule is authored.
// The token travels with the rule so a later unlink doesn't break runs.
type LinkedAccount struct {
	ID    string `json:"id" bson:"id"`
	Token string `json:"token" bson:"token"`
}

// Schedule holds exactly one mode's fields
type Schedule struct {
	Mode ScheduleMode `json:"mode" bson:"mode"`

	// ALWAYS
	IntervalMin int `json:"interval_min,omitempty" bson:"interval_min,omitempty"`

	// AT
	AtTime string `json:"at_time,omitempty" bson:"at_time,omitempty"` // "HH:MM"

	// WINDOW
	StartTime         string `json:"start_time,omitempty" bson:"start_time,omitempty"` // "HH:MM"
	EndTime           string `json:"end_time,omitempty" bson:"end_time,omitempty"`     // "HH:MM"
	WindowIntervalMin int    `json:"window_interval_min,omitempty" bson:"window_interval_min,omitempty"`
}

type Condition struct {
	Metric   string   `json:"metric" bson:"metric"`
	Operator Operator `json:"operator" bson:"operator"`
	Value    float64  `json:"value" bson:"value"`
}

type Action struct {
	Type ActionType `json:"type" bson:"type"`
}

// RuleMeta is run bookkeeping written only by the executor
type RuleMeta struct {
	LastAutoRunAt *time.Time `json:"last_auto_run_at,omitempty" bson:"last_auto_run_at,omitempty"`
	LastAtRunDate string     `json:"last_at_run_date,omitempty" bson:"last_at_run_date,omitempty"` // UTC "2006-01-02"
}

// Rule pauses or activates campaigns whose metrics cross thresholds,
// on a schedule, across its linked accounts.
type Rule struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name          string             `json:"name" bson:"name"`
	Active        bool               `json:"active" bson:"active"`
	AccountIDs    []LinkedAccount    `json:"account_ids" bson:"account_ids"`
	Logic         Logic              `json:"logic" bson:"logic"`
	CampaignScope CampaignScope      `json:"campaign_scope" bson:"campaign_scope"`
	DatePreset    string             `json:"date_preset" bson:"date_preset"`
	Schedule      Schedule           `json:"schedule" bson:"schedule"`
	Conditions    []Condition        `json:"conditions" bson:"conditions"`
	Action        Action             `json:"action" bson:"action"`
	Meta          RuleMeta           `json:"meta" bson:"meta"`
	LastRun       *time.Time         `json:"last_run,omitempty" bson:"last_run,omitempty"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at" bson:"updated_at"`
}

type Trigger string

const (
	TriggerAuto   Trigger = "auto"
	TriggerManual Trigger = "manual"
)

// RunLog records one execution of a rule
type RunLog struct {
	ID               primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	RunID            string             `json:"run_id" bson:"run_id"`
	RuleID           primitive.ObjectID `json:"rule_id" bson:"rule_id"`
	RuleName         string             `json:"rule_name" bson:"rule_name"`
	Trigger          Trigger            `json:"trigger" bson:"trigger"`
	StartTime        time.Time          `json:"start_time" bson:"start_time"`
	EndTime          time.Time          `json:"end_time" bson:"end_time"`
	Status           string             `json:"status" bson:"status"` // "success", "partial", "failed"
	CampaignsChecked int                `json:"campaigns_checked" bson:"campaigns_checked"`
	AffectedCount    int                `json:"affected_count" bson:"affected_count"`
	AccountErrors    []string           `json:"account_errors,omitempty" bson:"account_errors,omitempty"`
	CreatedAt        time.Time          `json:"created_at" bson:"created_at"`
}

const (
	RunStatusSuccess = "success"
	RunStatusPartial = "partial"
	RunStatusFailed  = "failed"
)
