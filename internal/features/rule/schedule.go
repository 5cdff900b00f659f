package rule

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	defaultIntervalMin = 5
	dayFormat          = "2006-01-02"
)

var clockPattern = regexp.MustCompile(`^([01]?\d|2[0-3]):([0-5]\d)$`)

// parseClock converts "HH:MM" into minutes since midnight
func parseClock(s string) (int, bool) {
	m := clockPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	return h*60 + min, true
}

func intervalOrDefault(min int) time.Duration {
	if min < 1 {
		min = defaultIntervalMin
	}
	return time.Duration(min) * time.Minute
}

func elapsedDue(meta RuleMeta, now time.Time, intervalMin int) bool {
	if meta.LastAutoRunAt == nil {
		return true
	}
	return now.Sub(*meta.LastAutoRunAt) >= intervalOrDefault(intervalMin)
}

// inWindow reports whether the current minute-of-day lies inside the
// start..end window. A start later than the end means the window crosses
// midnight, so the test inverts to "after start or before end".
func inWindow(cur, start, end int) bool {
	if start <= end {
		return cur >= start && cur <= end
	}
	return cur >= start || cur <= end
}

// Due decides whether a rule should run now, from its schedule and run
// metadata alone. The in-flight guard is the caller's concern.
func Due(r *Rule, now time.Time) bool {
	now = now.UTC()

	switch r.Schedule.Mode {
	case ScheduleAlways:
		return elapsedDue(r.Meta, now, r.Schedule.IntervalMin)

	case ScheduleAt:
		target, ok := parseClock(r.Schedule.AtTime)
		if !ok {
			return false
		}
		if r.Meta.LastAtRunDate == now.Format(dayFormat) {
			return false
		}
		cur := now.Hour()*60 + now.Minute()
		// a past but unrun target stays due until it runs, then the
		// date stamp locks it for the rest of the day
		return cur >= target

	case ScheduleWindow:
		start, okS := parseClock(r.Schedule.StartTime)
		end, okE := parseClock(r.Schedule.EndTime)
		if !okS || !okE {
			return false
		}
		cur := now.Hour()*60 + now.Minute()
		if !inWindow(cur, start, end) {
			return false
		}
		return elapsedDue(r.Meta, now, r.Schedule.WindowIntervalMin)
	}

	return false
}

// NextRunAt estimates when the rule next becomes due. It is advisory
// (display only); the scheduler always re-checks Due at tick time.
func NextRunAt(r *Rule, now time.Time) *time.Time {
	now = now.UTC()

	switch r.Schedule.Mode {
	case ScheduleAlways:
		if r.Meta.LastAutoRunAt == nil {
			return &now
		}
		next := r.Meta.LastAutoRunAt.Add(intervalOrDefault(r.Schedule.IntervalMin))
		if next.Before(now) {
			next = now
		}
		return &next

	case ScheduleAt:
		target, ok := parseClock(r.Schedule.AtTime)
		if !ok {
			return nil
		}
		next := midnight(now).Add(time.Duration(target) * time.Minute)
		cur := now.Hour()*60 + now.Minute()
		if r.Meta.LastAtRunDate == now.Format(dayFormat) || cur > target {
			next = next.AddDate(0, 0, 1)
		}
		return &next

	case ScheduleWindow:
		start, okS := parseClock(r.Schedule.StartTime)
		end, okE := parseClock(r.Schedule.EndTime)
		if !okS || !okE {
			return nil
		}
		cur := now.Hour()*60 + now.Minute()
		if inWindow(cur, start, end) {
			if r.Meta.LastAutoRunAt == nil {
				return &now
			}
			next := r.Meta.LastAutoRunAt.Add(intervalOrDefault(r.Schedule.WindowIntervalMin))
			if next.Before(now) {
				next = now
			}
			// the interval may land past the window's end; the next
			// tick inside the window picks it up, so this stays a
			// usable display estimate either way
			return &next
		}
		next := midnight(now).Add(time.Duration(start) * time.Minute)
		if cur > start {
			next = next.AddDate(0, 0, 1)
		}
		return &next
	}

	return nil
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
