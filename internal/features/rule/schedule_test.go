package rule

import (
	"testing"
	"time"
)

func at(hour, min int) time.Time {
	return time.Date(2026, 3, 10, hour, min, 0, 0, time.UTC)
}

func lastRun(t time.Time) RuleMeta {
	return RuleMeta{LastAutoRunAt: &t}
}

func TestDueAlways(t *testing.T) {
	tests := []struct {
		name string
		meta RuleMeta
		intv int
		now  time.Time
		want bool
	}{
		{"never run is due", RuleMeta{}, 10, at(12, 0), true},
		{"elapsed equals interval", lastRun(at(11, 50)), 10, at(12, 0), true},
		{"elapsed exceeds interval", lastRun(at(11, 0)), 10, at(12, 0), true},
		{"elapsed below interval", lastRun(at(11, 55)), 10, at(12, 0), false},
		{"zero interval falls back to five minutes", lastRun(at(11, 57)), 0, at(12, 0), false},
		{"default interval elapsed", lastRun(at(11, 55)), 0, at(12, 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Rule{
				Schedule: Schedule{Mode: ScheduleAlways, IntervalMin: tt.intv},
				Meta:     tt.meta,
			}
			if got := Due(r, tt.now); got != tt.want {
				t.Errorf("Due = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDueAt(t *testing.T) {
	tests := []struct {
		name    string
		atTime  string
		lastDay string
		now     time.Time
		want    bool
	}{
		{"before target", "09:00", "", at(8, 59), false},
		{"exactly at target", "09:00", "", at(9, 0), true},
		{"past target, unrun today", "09:00", "", at(15, 30), true},
		{"already ran today", "09:00", "2026-03-10", at(15, 30), false},
		{"ran yesterday", "09:00", "2026-03-09", at(9, 5), true},
		{"malformed time never fires", "9am", "", at(12, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Rule{
				Schedule: Schedule{Mode: ScheduleAt, AtTime: tt.atTime},
				Meta:     RuleMeta{LastAtRunDate: tt.lastDay},
			}
			if got := Due(r, tt.now); got != tt.want {
				t.Errorf("Due = %v, want %v", got, tt.want)
			}
		})
	}
}

// A day of ticks after the target must produce exactly one firing: the
// first due tick runs and stamps the date, which locks out the rest.
func TestDueAtFiresOncePerDay(t *testing.T) {
	r := &Rule{Schedule: Schedule{Mode: ScheduleAt, AtTime: "09:00"}}

	fired := 0
	for hour := 0; hour < 24; hour++ {
		now := at(hour, 30)
		if Due(r, now) {
			fired++
			r.Meta.LastAtRunDate = now.Format(dayFormat)
		}
	}

	if fired != 1 {
		t.Errorf("fired %d times, want exactly 1", fired)
	}
}

func TestDueWindow(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
		meta       RuleMeta
		now        time.Time
		want       bool
	}{
		{"inside plain window, never run", "09:00", "17:00", RuleMeta{}, at(12, 0), true},
		{"outside plain window", "09:00", "17:00", RuleMeta{}, at(18, 0), false},
		{"window boundaries inclusive", "09:00", "17:00", RuleMeta{}, at(17, 0), true},
		{"inside window, interval not elapsed", "09:00", "17:00", lastRun(at(11, 58)), at(12, 0), false},
		{"inside window, interval elapsed", "09:00", "17:00", lastRun(at(11, 54)), at(12, 0), true},

		// 22:00 to 02:00 crosses midnight
		{"wraparound late evening", "22:00", "02:00", lastRun(at(22, 50)), at(23, 0), true},
		{"wraparound after midnight", "22:00", "02:00", RuleMeta{}, at(1, 0), true},
		{"wraparound midday never due", "22:00", "02:00", lastRun(at(1, 0)), at(10, 0), false},
		{"wraparound midday never due even unrun", "22:00", "02:00", RuleMeta{}, at(10, 0), false},

		{"malformed start never fires", "10pm", "02:00", RuleMeta{}, at(23, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Rule{
				Schedule: Schedule{
					Mode:              ScheduleWindow,
					StartTime:         tt.start,
					EndTime:           tt.end,
					WindowIntervalMin: 5,
				},
				Meta: tt.meta,
			}
			if got := Due(r, tt.now); got != tt.want {
				t.Errorf("Due = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNextRunAtAlways(t *testing.T) {
	now := at(12, 0)

	r := &Rule{Schedule: Schedule{Mode: ScheduleAlways, IntervalMin: 10}}
	if next := NextRunAt(r, now); next == nil || !next.Equal(now) {
		t.Errorf("never-run rule should be due now, got %v", next)
	}

	r.Meta = lastRun(at(11, 55))
	want := at(12, 5)
	if next := NextRunAt(r, now); next == nil || !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}

	// an overdue estimate clamps to now
	r.Meta = lastRun(at(11, 0))
	if next := NextRunAt(r, now); next == nil || !next.Equal(now) {
		t.Errorf("overdue rule should report now, got %v", next)
	}
}

func TestNextRunAtDaily(t *testing.T) {
	r := &Rule{Schedule: Schedule{Mode: ScheduleAt, AtTime: "09:00"}}

	// before the target it is today's occurrence
	if next := NextRunAt(r, at(8, 0)); next == nil || !next.Equal(at(9, 0)) {
		t.Errorf("next = %v, want today 09:00", next)
	}

	// after running today it is tomorrow's occurrence
	r.Meta.LastAtRunDate = "2026-03-10"
	next := NextRunAt(r, at(10, 0))
	want := time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)
	if next == nil || !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestNextRunAtWindowOutside(t *testing.T) {
	r := &Rule{Schedule: Schedule{
		Mode:              ScheduleWindow,
		StartTime:         "22:00",
		EndTime:           "02:00",
		WindowIntervalMin: 5,
	}}

	// midday: next occurrence is tonight's window start
	if next := NextRunAt(r, at(10, 0)); next == nil || !next.Equal(at(22, 0)) {
		t.Errorf("next = %v, want today 22:00", next)
	}

	next := NextRunAt(r, at(23, 30))
	if next == nil || !next.Equal(at(23, 30)) {
		t.Errorf("inside window and never run should be now, got %v", next)
	}
}
