package rule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go-adrules/internal/config"
	"go-adrules/internal/features/settings"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// SchedulerStatus is the advisory state reported over the API
type SchedulerStatus struct {
	Running     bool       `json:"running"`
	Paused      bool       `json:"paused"`
	ActiveRules int        `json:"active_rules"`
	TickSeconds int        `json:"tick_seconds"`
	NextTickAt  *time.Time `json:"next_tick_at,omitempty"`
}

// Scheduler owns the periodic tick loop. It runs only while at least one
// rule is active and the global pause flag is off; rule and pause changes
// call Reconcile to flip it between running and stopped.
type Scheduler struct {
	rules    RuleRepository
	settings settings.SettingsRepository
	exec     *Executor
	inflight *InFlightSet
	log      *zap.Logger
	tickSec  int

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
	paused  bool
}

func NewScheduler(
	cfg *config.Config,
	rules RuleRepository,
	settingsRepo settings.SettingsRepository,
	exec *Executor,
	inflight *InFlightSet,
	log *zap.Logger,
) *Scheduler {
	return &Scheduler{
		rules:    rules,
		settings: settingsRepo,
		exec:     exec,
		inflight: inflight,
		log:      log,
		tickSec:  cfg.SchedulerTickSec,
	}
}

// Start loads the persisted pause flag and reconciles. Called once from
// the application lifecycle.
func (s *Scheduler) Start(ctx context.Context) error {
	stored, err := s.settings.GetByType(ctx, settings.SettingsScheduler)
	if err != nil {
		return fmt.Errorf("loading scheduler settings: %w", err)
	}
	if stored != nil {
		s.mu.Lock()
		s.paused = stored.SchedulerPaused
		s.mu.Unlock()
	}

	return s.Reconcile(ctx)
}

// Stop halts the tick loop. Already-dispatched rule runs finish on their
// own; stopping only prevents future dispatch.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Reconcile starts or stops the tick loop based on the current rule set
// and pause flag. Cheap and idempotent, so every rule mutation calls it.
func (s *Scheduler) Reconcile(ctx context.Context) error {
	active, err := s.rules.GetActive(ctx)
	if err != nil {
		return fmt.Errorf("loading active rules: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	shouldRun := len(active) > 0 && !s.paused

	if shouldRun && s.cron == nil {
		c := cron.New()
		id, err := c.AddFunc(fmt.Sprintf("@every %ds", s.tickSec), s.tick)
		if err != nil {
			return fmt.Errorf("registering scheduler tick: %w", err)
		}
		c.Start()
		s.cron = c
		s.entryID = id
		s.log.Info("Rule scheduler started",
			zap.Int("active_rules", len(active)),
			zap.Int("tick_seconds", s.tickSec))
	}

	if !shouldRun && s.cron != nil {
		s.stopLocked()
		s.log.Info("Rule scheduler stopped",
			zap.Int("active_rules", len(active)),
			zap.Bool("paused", s.paused))
	}

	return nil
}

func (s *Scheduler) stopLocked() {
	if s.cron == nil {
		return
	}
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.cron = nil
}

// SetPaused persists the pause flag and reconciles immediately
func (s *Scheduler) SetPaused(ctx context.Context, paused bool) error {
	if err := s.settings.Upsert(ctx, &settings.Settings{
		Type:            settings.SettingsScheduler,
		SchedulerPaused: paused,
	}); err != nil {
		return fmt.Errorf("persisting scheduler pause flag: %w", err)
	}

	s.mu.Lock()
	s.paused = paused
	s.mu.Unlock()

	return s.Reconcile(ctx)
}

func (s *Scheduler) Status(ctx context.Context) (*SchedulerStatus, error) {
	active, err := s.rules.GetActive(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := &SchedulerStatus{
		Running:     s.cron != nil,
		Paused:      s.paused,
		ActiveRules: len(active),
		TickSeconds: s.tickSec,
	}
	if s.cron != nil {
		next := s.cron.Entry(s.entryID).Next
		if !next.IsZero() {
			st.NextTickAt = &next
		}
	}
	return st, nil
}

// tick dispatches every due rule asynchronously. The tick never waits for
// executions; the in-flight guard inside the executor, not this loop,
// prevents duplicate concurrent runs of one rule.
func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	active, err := s.rules.GetActive(ctx)
	if err != nil {
		s.log.Error("Scheduler tick failed to load rules", zap.Error(err))
		return
	}

	now := time.Now().UTC()

	for i := range active {
		r := active[i]

		if s.inflight.Contains(r.ID.Hex()) {
			continue
		}
		if !Due(&r, now) {
			continue
		}

		go func() {
			runCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()

			if _, err := s.exec.Run(runCtx, &r, TriggerAuto); err != nil && err != ErrRuleInFlight {
				s.log.Error("Scheduled rule run failed",
					zap.String("rule_id", r.ID.Hex()),
					zap.Error(err))
			}
		}()
	}
}
