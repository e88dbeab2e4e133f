package scheduler

import (
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/cookiescan/internal/models"
)

// BuildSchedule translates a Frequency+TimeConfig into a cron.Schedule,
// centralising monthly day coercion and weekly day-name normalization per
// spec design notes §9. robfig/cron has no "last day of month" token, so a
// coerced monthly schedule gets a dedicated cron.Schedule implementation
// rather than a string expression.
func BuildSchedule(freq models.Frequency, tc models.TimeConfig) (cron.Schedule, error) {
	if err := tc.RequiredFields(freq); err != nil {
		return nil, err
	}

	switch freq {
	case models.FrequencyHourly:
		return parseStandard(cronExpr(0, tc.Minute, "*", "*", "*", "*"))
	case models.FrequencyDaily:
		return parseStandard(cronExpr(0, tc.Minute, tc.Hour, "*", "*", "*"))
	case models.FrequencyWeekly:
		dow, err := normalizeDayOfWeek(tc.DayOfWeek)
		if err != nil {
			return nil, err
		}
		return parseStandard(cronExpr(0, tc.Minute, tc.Hour, "*", "*", dow))
	case models.FrequencyMonthly:
		day := models.CoerceMonthlyDay(tc.Day)
		if day == 31 {
			return &lastDayOfMonthSchedule{hour: tc.Hour, minute: tc.Minute}, nil
		}
		return parseStandard(cronExpr(0, tc.Minute, tc.Hour, day, "*", "*"))
	case models.FrequencyCustomCron:
		return parseStandard(tc.CronExpr)
	default:
		return nil, strfmtErr("unknown frequency: " + string(freq))
	}
}

func parseStandard(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(expr)
}

// lastDayOfMonthSchedule fires at hour:minute on the final calendar day of
// every month, so a day>=28-configured schedule fires correctly including
// in February.
type lastDayOfMonthSchedule struct {
	hour, minute int
}

func (s *lastDayOfMonthSchedule) Next(t time.Time) time.Time {
	// First day of next month, then step back one day to land on this
	// month's last day; advances a further month if t is already past
	// this month's fire time.
	candidate := lastDayAt(t.Year(), t.Month(), s.hour, s.minute, t.Location())
	if !candidate.After(t) {
		year, month := t.Year(), t.Month()+1
		if month > time.December {
			month = time.January
			year++
		}
		candidate = lastDayAt(year, month, s.hour, s.minute, t.Location())
	}
	return candidate
}

func lastDayAt(year int, month time.Month, hour, minute int, loc *time.Location) time.Time {
	firstOfNext := time.Date(year, month+1, 1, 0, 0, 0, 0, loc)
	lastDay := firstOfNext.AddDate(0, 0, -1)
	return time.Date(lastDay.Year(), lastDay.Month(), lastDay.Day(), hour, minute, 0, 0, loc)
}

func cronExpr(sec, minute any, hour, dom, month, dow any) string {
	parts := make([]string, 6)
	for i, f := range []any{sec, minute, hour, dom, month, dow} {
		switch v := f.(type) {
		case string:
			parts[i] = v
		case int:
			parts[i] = itoa(v)
		default:
			parts[i] = "*"
		}
	}
	return strings.Join(parts, " ")
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

type strfmtErr string

func (e strfmtErr) Error() string { return string(e) }

// normalizeDayOfWeek accepts both long ("monday") and short ("mon") forms,
// case-insensitively, and returns robfig/cron's short form.
func normalizeDayOfWeek(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sunday", "sun":
		return "SUN", nil
	case "monday", "mon":
		return "MON", nil
	case "tuesday", "tue":
		return "TUE", nil
	case "wednesday", "wed":
		return "WED", nil
	case "thursday", "thu":
		return "THU", nil
	case "friday", "fri":
		return "FRI", nil
	case "saturday", "sat":
		return "SAT", nil
	default:
		return "", strfmtErr("unrecognized day_of_week: " + name)
	}
}
