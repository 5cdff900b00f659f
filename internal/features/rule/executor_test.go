package rule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go-adrules/internal/features/metric"
	"go-adrules/internal/metaapi"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fakeGraph struct {
	mu        sync.Mutex
	campaigns map[string][]metaapi.Campaign
	insights  map[string][]metaapi.InsightRow
	fail      map[string]error
	updates   []string
	gotFields []string
	block     chan struct{}
}

func (f *fakeGraph) GetCampaigns(ctx context.Context, accountID, token string) ([]metaapi.Campaign, error) {
	if f.block != nil {
		<-f.block
	}
	if err := f.fail[accountID]; err != nil {
		return nil, err
	}
	return f.campaigns[accountID], nil
}

func (f *fakeGraph) GetInsights(ctx context.Context, accountID, token, level, datePreset string, opts metaapi.InsightOptions) ([]metaapi.InsightRow, error) {
	f.mu.Lock()
	f.gotFields = opts.Fields
	f.mu.Unlock()
	return f.insights[accountID], nil
}

func (f *fakeGraph) UpdateStatus(ctx context.Context, objectID, status, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, objectID+":"+status)
	return nil
}

type fakeCatalog struct {
	defs map[string]*metric.Definition
}

func (f *fakeCatalog) Catalog(ctx context.Context) ([]metric.Definition, error) { return nil, nil }

func (f *fakeCatalog) Lookup(ctx context.Context, key string) (*metric.Definition, error) {
	return f.defs[key], nil
}

type metaStamp struct {
	runAt  time.Time
	atDate string
}

type fakeRuleRepo struct {
	mu     sync.Mutex
	stamps []metaStamp
}

func (f *fakeRuleRepo) Create(ctx context.Context, r *Rule) error          { return nil }
func (f *fakeRuleRepo) GetByID(ctx context.Context, id string) (*Rule, error) { return nil, nil }
func (f *fakeRuleRepo) List(ctx context.Context) ([]Rule, error)           { return nil, nil }
func (f *fakeRuleRepo) GetActive(ctx context.Context) ([]Rule, error)      { return nil, nil }
func (f *fakeRuleRepo) Update(ctx context.Context, r *Rule) error          { return nil }
func (f *fakeRuleRepo) SetActive(ctx context.Context, id string, active bool) error {
	return nil
}
func (f *fakeRuleRepo) Delete(ctx context.Context, id string) error { return nil }

func (f *fakeRuleRepo) UpdateRunMeta(ctx context.Context, id primitive.ObjectID, runAt time.Time, atDate string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stamps = append(f.stamps, metaStamp{runAt: runAt, atDate: atDate})
	return nil
}

type fakeRunLogRepo struct {
	mu   sync.Mutex
	logs []RunLog
}

func (f *fakeRunLogRepo) Create(ctx context.Context, log *RunLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, *log)
	return nil
}

func (f *fakeRunLogRepo) ListByRule(ctx context.Context, ruleID string, limit int) ([]RunLog, error) {
	return nil, nil
}

func (f *fakeRunLogRepo) ListRecent(ctx context.Context, limit int) ([]RunLog, error) {
	return nil, nil
}

func testCatalog() *fakeCatalog {
	return &fakeCatalog{defs: map[string]*metric.Definition{
		"spend":  {Key: "spend", Source: metric.SourceInsight, Field: "spend"},
		"clicks": {Key: "clicks", Source: metric.SourceInsight, Field: "clicks"},
		"cpr": {Key: "cpr", Source: metric.SourceDerived, Derived: metric.DerivedPurchaseCost,
			RequiredFields: []string{"cost_per_action_type"}},
	}}
}

func newTestExecutor(graph *fakeGraph, rules *fakeRuleRepo, runLogs *fakeRunLogRepo) *Executor {
	return &Executor{
		campaigns: graph,
		insights:  graph,
		updater:   graph,
		rules:     rules,
		runLogs:   runLogs,
		catalog:   testCatalog(),
		inflight:  NewInFlightSet(),
		log:       zap.NewNop(),
		workers:   2,
	}
}

func spendRow(campaignID string, spend float64) metaapi.InsightRow {
	return metaapi.InsightRow{
		CampaignID: campaignID,
		Fields:     map[string]float64{"spend": spend},
	}
}

func makeRule(accounts []LinkedAccount, logic Logic, scope CampaignScope, action ActionType, conds ...Condition) *Rule {
	return &Rule{
		ID:            primitive.NewObjectID(),
		Name:          "test rule",
		Active:        true,
		AccountIDs:    accounts,
		Logic:         logic,
		CampaignScope: scope,
		DatePreset:    "today",
		Schedule:      Schedule{Mode: ScheduleAlways, IntervalMin: 5},
		Conditions:    conds,
		Action:        Action{Type: action},
	}
}

func oneAccount() []LinkedAccount {
	return []LinkedAccount{{ID: "act_1", Token: "tok"}}
}

func TestRunPauseScenario(t *testing.T) {
	graph := &fakeGraph{
		campaigns: map[string][]metaapi.Campaign{"act_1": {
			{ID: "A", Name: "alpha", Status: "ACTIVE"},
			{ID: "B", Name: "beta", Status: "ACTIVE"},
			{ID: "C", Name: "gamma", Status: "PAUSED"},
		}},
		insights: map[string][]metaapi.InsightRow{"act_1": {
			spendRow("A", 80),
			spendRow("B", 10),
			spendRow("C", 80),
		}},
	}
	rules := &fakeRuleRepo{}
	runLogs := &fakeRunLogRepo{}
	exec := newTestExecutor(graph, rules, runLogs)

	r := makeRule(oneAccount(), LogicAnd, ScopeAll, ActionPause,
		Condition{Metric: "spend", Operator: OperatorGreater, Value: 50})

	result, err := exec.Run(context.Background(), r, TriggerManual)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.AffectedCount != 1 {
		t.Errorf("affected = %d, want 1", result.AffectedCount)
	}
	// C is already paused, so only A and B are evaluated at all
	if result.CampaignsChecked != 2 {
		t.Errorf("checked = %d, want 2", result.CampaignsChecked)
	}
	if len(graph.updates) != 1 || graph.updates[0] != "A:PAUSED" {
		t.Errorf("updates = %v, want [A:PAUSED]", graph.updates)
	}
	if result.Status != RunStatusSuccess {
		t.Errorf("status = %q, want success", result.Status)
	}

	if len(rules.stamps) != 1 {
		t.Fatalf("meta stamped %d times, want 1", len(rules.stamps))
	}
	if rules.stamps[0].atDate != "" {
		t.Errorf("ALWAYS schedule must not stamp an at-date, got %q", rules.stamps[0].atDate)
	}
	if len(runLogs.logs) != 1 || runLogs.logs[0].AffectedCount != 1 {
		t.Errorf("run log = %+v, want one entry with affected 1", runLogs.logs)
	}
}

func TestRunLogicCombination(t *testing.T) {
	tests := []struct {
		name     string
		logic    Logic
		spend    float64
		clicks   float64
		affected int
	}{
		{"AND both pass", LogicAnd, 80, 2, 1},
		{"AND one fails", LogicAnd, 80, 50, 0},
		{"OR one passes", LogicOr, 10, 2, 1},
		{"OR none passes", LogicOr, 10, 50, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			graph := &fakeGraph{
				campaigns: map[string][]metaapi.Campaign{"act_1": {{ID: "A", Status: "ACTIVE"}}},
				insights: map[string][]metaapi.InsightRow{"act_1": {{
					CampaignID: "A",
					Fields:     map[string]float64{"spend": tt.spend, "clicks": tt.clicks},
				}}},
			}
			exec := newTestExecutor(graph, &fakeRuleRepo{}, &fakeRunLogRepo{})

			r := makeRule(oneAccount(), tt.logic, ScopeAll, ActionPause,
				Condition{Metric: "spend", Operator: OperatorGreater, Value: 50},
				Condition{Metric: "clicks", Operator: OperatorLess, Value: 5})

			result, err := exec.Run(context.Background(), r, TriggerManual)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if result.AffectedCount != tt.affected {
				t.Errorf("affected = %d, want %d", result.AffectedCount, tt.affected)
			}
		})
	}
}

// An absent priority-cost value satisfies no comparison, so "cpr < 100"
// cannot pause a campaign that has no purchase cost at all.
func TestRunAbsentMetricNeverMatches(t *testing.T) {
	graph := &fakeGraph{
		campaigns: map[string][]metaapi.Campaign{"act_1": {{ID: "A", Status: "ACTIVE"}}},
		insights: map[string][]metaapi.InsightRow{"act_1": {{
			CampaignID:        "A",
			Fields:            map[string]float64{"spend": 500},
			CostPerActionType: metaapi.ActionMap{},
		}}},
	}
	exec := newTestExecutor(graph, &fakeRuleRepo{}, &fakeRunLogRepo{})

	r := makeRule(oneAccount(), LogicAnd, ScopeAll, ActionPause,
		Condition{Metric: "cpr", Operator: OperatorLess, Value: 100})

	result, err := exec.Run(context.Background(), r, TriggerManual)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.AffectedCount != 0 || len(graph.updates) != 0 {
		t.Errorf("absent metric caused updates: %v", graph.updates)
	}
}

func TestRunScopeAndNoopFilters(t *testing.T) {
	graph := &fakeGraph{
		campaigns: map[string][]metaapi.Campaign{"act_1": {
			{ID: "A", Status: "ACTIVE"},
			{ID: "P", Status: "PAUSED"},
			{ID: "X", Status: "ARCHIVED"},
		}},
		insights: map[string][]metaapi.InsightRow{"act_1": {
			spendRow("A", 100), spendRow("P", 100), spendRow("X", 100),
		}},
	}
	exec := newTestExecutor(graph, &fakeRuleRepo{}, &fakeRunLogRepo{})

	// ACTIVE scope excludes the paused campaign even though its spend
	// satisfies the condition; ARCHIVED is dropped by the no-op filter
	r := makeRule(oneAccount(), LogicAnd, ScopeActive, ActionPause,
		Condition{Metric: "spend", Operator: OperatorGreater, Value: 50})

	result, err := exec.Run(context.Background(), r, TriggerManual)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(graph.updates) != 1 || graph.updates[0] != "A:PAUSED" {
		t.Errorf("updates = %v, want [A:PAUSED]", graph.updates)
	}

	// ACTIVATE skips already-running campaigns
	graph.updates = nil
	r = makeRule(oneAccount(), LogicAnd, ScopeAll, ActionActivate,
		Condition{Metric: "spend", Operator: OperatorGreater, Value: 50})

	result, err = exec.Run(context.Background(), r, TriggerManual)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.AffectedCount != 2 {
		t.Errorf("affected = %d, want 2 (paused and archived reactivated)", result.AffectedCount)
	}
	for _, u := range graph.updates {
		if u != "P:ACTIVE" && u != "X:ACTIVE" {
			t.Errorf("unexpected update %q", u)
		}
	}
}

func TestRunAccountFaultIsolation(t *testing.T) {
	graph := &fakeGraph{
		campaigns: map[string][]metaapi.Campaign{
			"act_good": {{ID: "A", Status: "ACTIVE"}},
		},
		insights: map[string][]metaapi.InsightRow{
			"act_good": {spendRow("A", 80)},
		},
		fail: map[string]error{"act_bad": errors.New("expired token")},
	}
	rules := &fakeRuleRepo{}
	runLogs := &fakeRunLogRepo{}
	exec := newTestExecutor(graph, rules, runLogs)

	r := makeRule([]LinkedAccount{
		{ID: "act_bad", Token: "tok"},
		{ID: "act_good", Token: "tok"},
	}, LogicAnd, ScopeAll, ActionPause,
		Condition{Metric: "spend", Operator: OperatorGreater, Value: 50})

	result, err := exec.Run(context.Background(), r, TriggerManual)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.AffectedCount != 1 {
		t.Errorf("healthy account contributed %d updates, want 1", result.AffectedCount)
	}
	if len(result.AccountErrors) != 1 {
		t.Errorf("account errors = %v, want one entry", result.AccountErrors)
	}
	if result.Status != RunStatusPartial {
		t.Errorf("status = %q, want partial", result.Status)
	}

	// run metadata is stamped even with a failed account
	if len(rules.stamps) != 1 {
		t.Errorf("meta stamped %d times, want 1", len(rules.stamps))
	}
}

func TestRunTotalFailureStillStampsMeta(t *testing.T) {
	graph := &fakeGraph{
		fail: map[string]error{"act_1": errors.New("rate limited")},
	}
	rules := &fakeRuleRepo{}
	exec := newTestExecutor(graph, rules, &fakeRunLogRepo{})

	r := makeRule(oneAccount(), LogicAnd, ScopeAll, ActionPause,
		Condition{Metric: "spend", Operator: OperatorGreater, Value: 50})

	result, err := exec.Run(context.Background(), r, TriggerManual)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != RunStatusFailed {
		t.Errorf("status = %q, want failed", result.Status)
	}
	if len(rules.stamps) != 1 {
		t.Errorf("meta stamped %d times, want 1 (ran means attempted)", len(rules.stamps))
	}
}

func TestRunAtScheduleStampsDate(t *testing.T) {
	graph := &fakeGraph{
		campaigns: map[string][]metaapi.Campaign{"act_1": {}},
		insights:  map[string][]metaapi.InsightRow{"act_1": {}},
	}
	rules := &fakeRuleRepo{}
	exec := newTestExecutor(graph, rules, &fakeRunLogRepo{})

	r := makeRule(oneAccount(), LogicAnd, ScopeAll, ActionPause,
		Condition{Metric: "spend", Operator: OperatorGreater, Value: 50})
	r.Schedule = Schedule{Mode: ScheduleAt, AtTime: "09:00"}

	if _, err := exec.Run(context.Background(), r, TriggerAuto); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(rules.stamps) != 1 {
		t.Fatalf("meta stamped %d times, want 1", len(rules.stamps))
	}
	want := time.Now().UTC().Format(dayFormat)
	if rules.stamps[0].atDate != want {
		t.Errorf("atDate = %q, want %q", rules.stamps[0].atDate, want)
	}
}

func TestRunInsightFieldSelection(t *testing.T) {
	graph := &fakeGraph{
		campaigns: map[string][]metaapi.Campaign{"act_1": {}},
		insights:  map[string][]metaapi.InsightRow{"act_1": {}},
	}
	exec := newTestExecutor(graph, &fakeRuleRepo{}, &fakeRunLogRepo{})

	r := makeRule(oneAccount(), LogicAnd, ScopeAll, ActionPause,
		Condition{Metric: "cpr", Operator: OperatorLess, Value: 10})

	if _, err := exec.Run(context.Background(), r, TriggerManual); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := map[string]bool{}
	for _, f := range graph.gotFields {
		got[f] = true
	}
	for _, f := range []string{"campaign_id", "account_currency", "spend", "cost_per_action_type"} {
		if !got[f] {
			t.Errorf("missing required field %q in %v", f, graph.gotFields)
		}
	}
	if got["impressions"] {
		t.Errorf("requested fields %v include impressions which no condition needs", graph.gotFields)
	}
}

// Two run requests while one execution is outstanding must produce exactly
// one execution; the guard spans the entire run.
func TestRunInFlightGuard(t *testing.T) {
	release := make(chan struct{})
	graph := &fakeGraph{
		campaigns: map[string][]metaapi.Campaign{"act_1": {{ID: "A", Status: "ACTIVE"}}},
		insights:  map[string][]metaapi.InsightRow{"act_1": {spendRow("A", 80)}},
		block:     release,
	}
	runLogs := &fakeRunLogRepo{}
	exec := newTestExecutor(graph, &fakeRuleRepo{}, runLogs)

	r := makeRule(oneAccount(), LogicAnd, ScopeAll, ActionPause,
		Condition{Metric: "spend", Operator: OperatorGreater, Value: 50})

	done := make(chan error, 1)
	go func() {
		_, err := exec.Run(context.Background(), r, TriggerAuto)
		done <- err
	}()

	// wait for the first run to take the guard
	deadline := time.After(2 * time.Second)
	for !exec.inflight.Contains(r.ID.Hex()) {
		select {
		case <-deadline:
			t.Fatal("first run never acquired the in-flight guard")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if _, err := exec.Run(context.Background(), r, TriggerAuto); err != ErrRuleInFlight {
		t.Errorf("second run err = %v, want ErrRuleInFlight", err)
	}
	if _, err := exec.Run(context.Background(), r, TriggerManual); err != ErrRuleInFlight {
		t.Errorf("manual run during execution err = %v, want ErrRuleInFlight", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	if len(runLogs.logs) != 1 {
		t.Errorf("run logs = %d, want exactly 1", len(runLogs.logs))
	}

	// guard released, so the rule can run again
	graph.block = nil
	if _, err := exec.Run(context.Background(), r, TriggerAuto); err != nil {
		t.Errorf("run after release: %v", err)
	}
}
