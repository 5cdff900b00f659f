package rule

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RuleView is a rule plus advisory display state
type RuleView struct {
	Rule
	NextRunAt *time.Time `json:"next_run_at,omitempty"`
	InFlight  bool       `json:"in_flight"`
}

type RuleService interface {
	Create(ctx context.Context, r *Rule) error
	Get(ctx context.Context, id string) (*RuleView, error)
	List(ctx context.Context) ([]RuleView, error)
	Update(ctx context.Context, id string, r *Rule) error
	Delete(ctx context.Context, id string) error
	Toggle(ctx context.Context, id string) (*Rule, error)
	RunNow(ctx context.Context, id string) (*RunResult, error)
	Logs(ctx context.Context, id string, limit int) ([]RunLog, error)
}

type RuleServiceImpl struct {
	repo      RuleRepository
	runLogs   RunLogRepository
	exec      *Executor
	scheduler *Scheduler
	inflight  *InFlightSet
	log       *zap.Logger
}

func NewRuleService(
	repo RuleRepository,
	runLogs RunLogRepository,
	exec *Executor,
	scheduler *Scheduler,
	inflight *InFlightSet,
	log *zap.Logger,
) RuleService {
	return &RuleServiceImpl{
		repo:      repo,
		runLogs:   runLogs,
		exec:      exec,
		scheduler: scheduler,
		inflight:  inflight,
		log:       log,
	}
}

// applyDefaults backfills fields that older clients omit
func applyDefaults(r *Rule) {
	if r.CampaignScope == "" {
		r.CampaignScope = ScopeAll
	}
	if r.DatePreset == "" {
		r.DatePreset = "today"
	}
	if r.Logic == "" {
		r.Logic = LogicAnd
	}
	if r.Schedule.Mode == "" {
		r.Schedule.Mode = ScheduleAlways
	}
	if r.Schedule.Mode == ScheduleAlways && r.Schedule.IntervalMin < 1 {
		r.Schedule.IntervalMin = defaultIntervalMin
	}
	if r.Schedule.Mode == ScheduleWindow && r.Schedule.WindowIntervalMin < 1 {
		r.Schedule.WindowIntervalMin = defaultIntervalMin
	}
}

// validateRule rejects a rule before it ever reaches the store
func validateRule(r *Rule) error {
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if len(r.AccountIDs) == 0 {
		return fmt.Errorf("at least one linked account is required")
	}
	for _, acct := range r.AccountIDs {
		if acct.ID == "" || acct.Token == "" {
			return fmt.Errorf("linked accounts need both an id and a token")
		}
	}
	if len(r.Conditions) == 0 {
		return fmt.Errorf("at least one condition is required")
	}
	for _, cond := range r.Conditions {
		if cond.Metric == "" {
			return fmt.Errorf("condition metric is required")
		}
		switch cond.Operator {
		case OperatorGreater, OperatorLess, OperatorEqual:
		default:
			return fmt.Errorf("unknown operator %q", cond.Operator)
		}
	}
	if r.Logic != LogicAnd && r.Logic != LogicOr {
		return fmt.Errorf("logic must be AND or OR")
	}
	switch r.CampaignScope {
	case ScopeAll, ScopeActive, ScopePaused:
	default:
		return fmt.Errorf("unknown campaign scope %q", r.CampaignScope)
	}
	if r.Action.Type != ActionPause && r.Action.Type != ActionActivate {
		return fmt.Errorf("unknown action %q", r.Action.Type)
	}

	switch r.Schedule.Mode {
	case ScheduleAlways:
		// interval backfilled by applyDefaults
	case ScheduleAt:
		if _, ok := parseClock(r.Schedule.AtTime); !ok {
			return fmt.Errorf("schedule time must be HH:MM, got %q", r.Schedule.AtTime)
		}
	case ScheduleWindow:
		if _, ok := parseClock(r.Schedule.StartTime); !ok {
			return fmt.Errorf("window start must be HH:MM, got %q", r.Schedule.StartTime)
		}
		if _, ok := parseClock(r.Schedule.EndTime); !ok {
			return fmt.Errorf("window end must be HH:MM, got %q", r.Schedule.EndTime)
		}
	default:
		return fmt.Errorf("unknown schedule mode %q", r.Schedule.Mode)
	}

	return nil
}

func (s *RuleServiceImpl) Create(ctx context.Context, r *Rule) error {
	applyDefaults(r)
	if err := validateRule(r); err != nil {
		return err
	}
	r.Meta = RuleMeta{}
	r.LastRun = nil

	if err := s.repo.Create(ctx, r); err != nil {
		return err
	}

	s.log.Info("Rule created",
		zap.String("rule_id", r.ID.Hex()),
		zap.String("rule_name", r.Name))

	return s.scheduler.Reconcile(ctx)
}

func (s *RuleServiceImpl) Get(ctx context.Context, id string) (*RuleView, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, nil
	}
	v := s.view(*r, time.Now())
	return &v, nil
}

func (s *RuleServiceImpl) List(ctx context.Context) ([]RuleView, error) {
	rules, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	views := make([]RuleView, 0, len(rules))
	for _, r := range rules {
		views = append(views, s.view(r, now))
	}
	return views, nil
}

func (s *RuleServiceImpl) view(r Rule, now time.Time) RuleView {
	v := RuleView{Rule: r, InFlight: s.inflight.Contains(r.ID.Hex())}
	if r.Active {
		v.NextRunAt = NextRunAt(&r, now)
	}
	return v
}

func (s *RuleServiceImpl) Update(ctx context.Context, id string, r *Rule) error {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("rule not found")
	}

	applyDefaults(r)
	if err := validateRule(r); err != nil {
		return err
	}

	// run metadata belongs to the executor, not the client
	r.ID = existing.ID
	r.Meta = existing.Meta
	r.LastRun = existing.LastRun
	r.CreatedAt = existing.CreatedAt

	if err := s.repo.Update(ctx, r); err != nil {
		return err
	}

	return s.scheduler.Reconcile(ctx)
}

func (s *RuleServiceImpl) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.log.Info("Rule deleted", zap.String("rule_id", id))

	// an in-flight run of the deleted rule finishes on its own; deletion
	// only stops future dispatch
	return s.scheduler.Reconcile(ctx)
}

func (s *RuleServiceImpl) Toggle(ctx context.Context, id string) (*Rule, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("rule not found")
	}

	if err := s.repo.SetActive(ctx, id, !r.Active); err != nil {
		return nil, err
	}
	r.Active = !r.Active

	s.log.Info("Rule toggled",
		zap.String("rule_id", id),
		zap.Bool("active", r.Active))

	if err := s.scheduler.Reconcile(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// RunNow executes the rule immediately, bypassing due-time gating but not
// the in-flight guard; a manual run cannot overlap a scheduled one.
func (s *RuleServiceImpl) RunNow(ctx context.Context, id string) (*RunResult, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("rule not found")
	}

	return s.exec.Run(ctx, r, TriggerManual)
}

func (s *RuleServiceImpl) Logs(ctx context.Context, id string, limit int) ([]RunLog, error) {
	return s.runLogs.ListByRule(ctx, id, limit)
}
