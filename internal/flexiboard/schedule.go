package flexiboard

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/starford/flexiboard/internal/apperr"
	"github.com/starford/flexiboard/internal/models"
)

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// CronSpec converts an every-time-period schedule into a five-field cron
// expression. Time defaults to 09:00. Weekly days are 0-6 from Sunday;
// monthly days are 1-31.
func CronSpec(s *models.Schedule) (string, error) {
	if s == nil {
		return "", fmt.Errorf("schedule is required: %w", apperr.ErrInvalid)
	}
	hour, minute := 9, 0
	if s.Time != "" {
		h, m, ok := strings.Cut(s.Time, ":")
		var err1, err2 error
		hour, err1 = strconv.Atoi(h)
		minute, err2 = strconv.Atoi(m)
		if !ok || err1 != nil || err2 != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
			return "", fmt.Errorf("schedule time %q: %w", s.Time, apperr.ErrInvalid)
		}
	}
	var spec string
	switch s.Frequency {
	case models.FrequencyHourly:
		spec = fmt.Sprintf("%d * * * *", minute)
	case models.FrequencyDaily:
		spec = fmt.Sprintf("%d %d * * *", minute, hour)
	case models.FrequencyWeekly:
		spec = fmt.Sprintf("%d %d * * %s", minute, hour, joinDays(s.Days, "1"))
	case models.FrequencyMonthly:
		spec = fmt.Sprintf("%d %d %s * *", minute, hour, joinDays(s.Days, "1"))
	default:
		return "", fmt.Errorf("schedule frequency %q: %w", s.Frequency, apperr.ErrInvalid)
	}
	if _, err := scheduleParser.Parse(spec); err != nil {
		return "", fmt.Errorf("schedule %q: %v: %w", spec, err, apperr.ErrInvalid)
	}
	return spec, nil
}

func joinDays(days []int, def string) string {
	if len(days) == 0 {
		return def
	}
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ",")
}

// NextRun returns the first instant after `after` at which the schedule
// fires.
func NextRun(s *models.Schedule, after time.Time) (time.Time, error) {
	spec, err := CronSpec(s)
	if err != nil {
		return time.Time{}, err
	}
	sched, err := scheduleParser.Parse(spec)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(after), nil
}

// ScheduleDue reports whether the automation has a scheduled instant in
// (since, now]. since is LastRun or, for a rule that never ran, CreatedAt.
func ScheduleDue(auto models.Automation, now time.Time) bool {
	if auto.Trigger.Type != models.TriggerTimePeriod {
		return false
	}
	since := auto.CreatedAt
	if auto.LastRun != nil {
		since = *auto.LastRun
	}
	next, err := NextRun(auto.Trigger.Schedule, since)
	if err != nil {
		return false
	}
	return !next.After(now)
}

// DateHit is an item date a when-date-arrives rule should fire for.
type DateHit struct {
	ItemID string
	Column string
	Date   string // YYYY-MM-DD
}

// ArrivedDates lists the item dates auto fires for at now: dates on or
// before today, and no earlier than the day the rule was created so a new
// rule does not fire for the whole history. Without a trigger column every
// date column is watched. Callers dedupe hits across sweeps.
func (e *Engine) ArrivedDates(auto models.Automation, now time.Time) []DateHit {
	if auto.Trigger.Type != models.TriggerDateArrives {
		return nil
	}
	var cols []string
	if ref := auto.Trigger.Column; ref != "" {
		if c := e.board.ColumnByRef(ref); c != nil {
			cols = append(cols, c.ID)
		}
	} else {
		for _, c := range e.dateColumns() {
			cols = append(cols, c.ID)
		}
	}
	today := dayOf(now)
	floor := dayOf(auto.CreatedAt.In(now.Location()))
	var out []DateHit
	for _, it := range e.board.Items {
		for _, col := range cols {
			d, ok := localDay(it.Data[col], now.Location())
			if !ok {
				continue
			}
			if d.After(today) || d.Before(floor) {
				continue
			}
			evCol := col
			if auto.Trigger.Column != "" {
				evCol = auto.Trigger.Column
			}
			out = append(out, DateHit{ItemID: it.ID, Column: evCol, Date: d.Format(time.DateOnly)})
		}
	}
	return out
}

// localDay returns the calendar day of a date cell in loc. Date-only values
// name that day in every zone; timestamps are converted first.
func localDay(v any, loc *time.Location) (time.Time, bool) {
	if s, ok := v.(string); ok {
		if t, err := time.Parse(time.DateOnly, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, loc), true
		}
	}
	t, ok := toTime(v)
	if !ok {
		return time.Time{}, false
	}
	return dayOf(t.In(loc)), true
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
