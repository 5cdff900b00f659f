package rule

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go-adrules/internal/config"
	"go-adrules/internal/features/metric"
	"go-adrules/internal/metaapi"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// equalityEpsilon absorbs float noise in "=" comparisons
const equalityEpsilon = 0.0001

type CampaignFetcher interface {
	GetCampaigns(ctx context.Context, accountID, token string) ([]metaapi.Campaign, error)
}

type InsightFetcher interface {
	GetInsights(ctx context.Context, accountID, token, level, datePreset string, opts metaapi.InsightOptions) ([]metaapi.InsightRow, error)
}

type StatusUpdater interface {
	UpdateStatus(ctx context.Context, objectID, status, token string) error
}

// RunEvent is pushed to live listeners when a run starts and finishes
type RunEvent struct {
	Type             string    `json:"type"` // "run_started" / "run_finished"
	RunID            string    `json:"run_id"`
	RuleID           string    `json:"rule_id"`
	RuleName         string    `json:"rule_name"`
	Trigger          Trigger   `json:"trigger"`
	Status           string    `json:"status,omitempty"`
	CampaignsChecked int       `json:"campaigns_checked"`
	AffectedCount    int       `json:"affected_count"`
	FailedAccounts   int       `json:"failed_accounts"`
	At               time.Time `json:"at"`
}

type RunEventPublisher interface {
	PublishRunEvent(ev RunEvent)
}

// RunResult summarizes one rule execution
type RunResult struct {
	RunID            string        `json:"run_id"`
	CampaignsChecked int           `json:"campaigns_checked"`
	AffectedCount    int           `json:"affected_count"`
	AccountErrors    []string      `json:"account_errors,omitempty"`
	Duration         time.Duration `json:"-"`
	Status           string        `json:"status"`
}

// Executor runs one rule across its linked accounts with a bounded worker
// pool. Failures are contained per account; one bad token or throttled
// account never aborts the rest of the run.
type Executor struct {
	campaigns CampaignFetcher
	insights  InsightFetcher
	updater   StatusUpdater
	rules     RuleRepository
	runLogs   RunLogRepository
	catalog   metric.CatalogProvider
	inflight  *InFlightSet
	events    RunEventPublisher
	log       *zap.Logger
	workers   int
}

func NewExecutor(
	cfg *config.Config,
	client *metaapi.Client,
	rules RuleRepository,
	runLogs RunLogRepository,
	catalog metric.CatalogProvider,
	inflight *InFlightSet,
	events RunEventPublisher,
	log *zap.Logger,
) *Executor {
	return &Executor{
		campaigns: client,
		insights:  client,
		updater:   client,
		rules:     rules,
		runLogs:   runLogs,
		catalog:   catalog,
		inflight:  inflight,
		events:    events,
		log:       log,
		workers:   cfg.ExecutorWorkers,
	}
}

// Run executes the rule once. The in-flight guard covers the whole call,
// so a manual run and a scheduled run of the same rule cannot overlap.
func (e *Executor) Run(ctx context.Context, r *Rule, trigger Trigger) (*RunResult, error) {
	key := r.ID.Hex()
	if !e.inflight.TryAcquire(key) {
		return nil, ErrRuleInFlight
	}
	defer e.inflight.Release(key)

	start := time.Now().UTC()
	runID := uuid.NewString()
	log := e.log.With(
		zap.String("rule_id", key),
		zap.String("run_id", runID),
		zap.String("trigger", string(trigger)),
	)
	log.Info("Rule run started", zap.String("rule_name", r.Name))

	e.publish(RunEvent{
		Type: "run_started", RunID: runID, RuleID: key, RuleName: r.Name,
		Trigger: trigger, At: start,
	})

	defs := e.resolveConditions(ctx, r)
	fields := insightFields(defs)

	var (
		mu       sync.Mutex
		checked  int
		affected int
		accErrs  []string
	)

	g := &errgroup.Group{}
	g.SetLimit(e.maxWorkers())

	for _, acct := range r.AccountIDs {
		acct := acct
		g.Go(func() error {
			c, a, err := e.runAccount(ctx, r, acct, defs, fields, log)
			mu.Lock()
			defer mu.Unlock()
			checked += c
			affected += a
			if err != nil {
				accErrs = append(accErrs, fmt.Sprintf("%s: %v", acct.ID, err))
				log.Warn("Account failed during rule run",
					zap.String("account_id", acct.ID),
					zap.Error(err))
			}
			return nil
		})
	}
	g.Wait()

	end := time.Now().UTC()
	status := runStatus(len(r.AccountIDs), len(accErrs))

	// run metadata is stamped even when every account failed; "ran"
	// means "attempted", and the run log keeps the failure visible
	atDate := ""
	if r.Schedule.Mode == ScheduleAt {
		atDate = end.Format(dayFormat)
	}
	if err := e.rules.UpdateRunMeta(ctx, r.ID, end, atDate); err != nil {
		log.Error("Failed to update rule run metadata", zap.Error(err))
	}

	if err := e.runLogs.Create(ctx, &RunLog{
		RunID:            runID,
		RuleID:           r.ID,
		RuleName:         r.Name,
		Trigger:          trigger,
		StartTime:        start,
		EndTime:          end,
		Status:           status,
		CampaignsChecked: checked,
		AffectedCount:    affected,
		AccountErrors:    accErrs,
	}); err != nil {
		log.Error("Failed to record rule run log", zap.Error(err))
	}

	e.publish(RunEvent{
		Type: "run_finished", RunID: runID, RuleID: key, RuleName: r.Name,
		Trigger: trigger, Status: status,
		CampaignsChecked: checked, AffectedCount: affected,
		FailedAccounts: len(accErrs), At: end,
	})

	log.Info("Rule run finished",
		zap.String("status", status),
		zap.Int("campaigns_checked", checked),
		zap.Int("affected_count", affected),
		zap.Int("failed_accounts", len(accErrs)),
		zap.Duration("duration", end.Sub(start)))

	return &RunResult{
		RunID:            runID,
		CampaignsChecked: checked,
		AffectedCount:    affected,
		AccountErrors:    accErrs,
		Duration:         end.Sub(start),
		Status:           status,
	}, nil
}

func (e *Executor) maxWorkers() int {
	if e.workers < 1 {
		return 2
	}
	return e.workers
}

func (e *Executor) publish(ev RunEvent) {
	if e.events != nil {
		e.events.PublishRunEvent(ev)
	}
}

func runStatus(accounts, failed int) string {
	switch {
	case failed == 0:
		return RunStatusSuccess
	case failed < accounts:
		return RunStatusPartial
	default:
		return RunStatusFailed
	}
}

// resolveConditions looks up the metric definition behind each condition.
// Unknown keys (a deleted custom metric, a typo in an old rule) resolve to
// nil and evaluate as 0 rather than aborting the run.
func (e *Executor) resolveConditions(ctx context.Context, r *Rule) []*metric.Definition {
	defs := make([]*metric.Definition, len(r.Conditions))
	for i, cond := range r.Conditions {
		def, err := e.catalog.Lookup(ctx, cond.Metric)
		if err != nil {
			e.log.Warn("Metric lookup failed",
				zap.String("metric", cond.Metric),
				zap.Error(err))
			continue
		}
		defs[i] = def
	}
	return defs
}

// insightFields collects the insight fields the resolved conditions need,
// plus the identity fields every evaluation requires. Requesting only
// these keeps payloads small and rate-limit pressure down.
func insightFields(defs []*metric.Definition) []string {
	set := map[string]struct{}{
		"campaign_id":      {},
		"account_currency": {},
		"spend":            {},
	}
	for _, def := range defs {
		if def == nil {
			continue
		}
		if def.Field != "" {
			set[def.Field] = struct{}{}
		}
		for _, f := range def.RequiredFields {
			set[f] = struct{}{}
		}
	}

	fields := make([]string, 0, len(set))
	for f := range set {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

func (e *Executor) runAccount(
	ctx context.Context,
	r *Rule,
	acct LinkedAccount,
	defs []*metric.Definition,
	fields []string,
	log *zap.Logger,
) (checked, affected int, err error) {
	campaigns, err := e.campaigns.GetCampaigns(ctx, acct.ID, acct.Token)
	if err != nil {
		return 0, 0, err
	}

	insights, err := e.insights.GetInsights(ctx, acct.ID, acct.Token, "campaign", r.DatePreset, metaapi.InsightOptions{
		Fields: fields,
	})
	if err != nil {
		return 0, 0, err
	}

	byCampaign := make(map[string]*metaapi.InsightRow, len(insights))
	for i := range insights {
		byCampaign[insights[i].CampaignID] = &insights[i]
	}

	target := targetStatus(r.Action.Type)

	for i := range campaigns {
		c := &campaigns[i]

		if !scopeAdmits(r.CampaignScope, c.Status) {
			continue
		}
		if actionIsNoop(r.Action.Type, c.Status) {
			continue
		}

		checked++

		if !conditionsMatch(r.Logic, r.Conditions, defs, c, byCampaign[c.ID]) {
			continue
		}

		if updErr := e.updater.UpdateStatus(ctx, c.ID, target, acct.Token); updErr != nil {
			log.Warn("Status update failed",
				zap.String("account_id", acct.ID),
				zap.String("campaign_id", c.ID),
				zap.Error(updErr))
			continue
		}

		affected++
		log.Info("Campaign status changed",
			zap.String("account_id", acct.ID),
			zap.String("campaign_id", c.ID),
			zap.String("campaign_name", c.Name),
			zap.String("new_status", target))
	}

	return checked, affected, nil
}

func targetStatus(action ActionType) string {
	if action == ActionActivate {
		return "ACTIVE"
	}
	return "PAUSED"
}

// scopeAdmits filters on the campaign's literal status: ALL admits
// everything, ACTIVE and PAUSED admit only that status.
func scopeAdmits(scope CampaignScope, status string) bool {
	switch scope {
	case ScopeActive:
		return status == "ACTIVE"
	case ScopePaused:
		return status == "PAUSED"
	}
	return true
}

// actionIsNoop skips campaigns the action could not change: PAUSE only
// applies to ACTIVE campaigns (not already-paused, not archived), and
// ACTIVATE skips campaigns already running.
func actionIsNoop(action ActionType, status string) bool {
	if action == ActionPause {
		return status != "ACTIVE"
	}
	return status == "ACTIVE"
}

// conditionsMatch combines the rule's conditions with AND/OR. An absent
// metric value satisfies no operator, so a missing cost entry can never
// trip a "< threshold" condition.
func conditionsMatch(logic Logic, conds []Condition, defs []*metric.Definition, c *metaapi.Campaign, ins *metaapi.InsightRow) bool {
	if len(conds) == 0 {
		return false
	}

	for i, cond := range conds {
		v, present := metric.Evaluate(defs[i], c, ins)
		pass := present && compare(v, cond.Operator, cond.Value)

		if logic == LogicOr {
			if pass {
				return true
			}
			continue
		}
		if !pass {
			return false
		}
	}

	return logic != LogicOr
}

func compare(v float64, op Operator, threshold float64) bool {
	switch op {
	case OperatorGreater:
		return v > threshold
	case OperatorLess:
		return v < threshold
	case OperatorEqual:
		return math.Abs(v-threshold) <= equalityEpsilon
	}
	return false
}
