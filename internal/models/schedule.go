// Package models defines the persisted types of the cookie scanning engine:
// schedules, scan parameters/results, cookies, job executions, and the static
// classification inputs (rules, per-domain overrides).
package models

import "time"

// ScanType is the crawl strategy a Schedule requests.
type ScanType string

const (
	ScanTypeQuick ScanType = "quick"
	ScanTypeDeep  ScanType = "deep"
)

// Frequency is how often a Schedule's trigger recurs.
type Frequency string

const (
	FrequencyHourly      Frequency = "hourly"
	FrequencyDaily       Frequency = "daily"
	FrequencyWeekly      Frequency = "weekly"
	FrequencyMonthly     Frequency = "monthly"
	FrequencyCustomCron  Frequency = "custom-cron"
)

// TimeConfig holds the frequency-specific firing time. Only the fields
// required by Frequency are populated; see RequiredFields.
type TimeConfig struct {
	Hour       int    `json:"hour,omitempty" badgerhold:"-"`
	Minute     int    `json:"minute,omitempty" badgerhold:"-"`
	DayOfWeek  string `json:"day_of_week,omitempty" badgerhold:"-"` // long or short, case-insensitive
	Day        int    `json:"day,omitempty" badgerhold:"-"`         // day of month; >=28 coerced to "last day"
	CronExpr   string `json:"cron_expr,omitempty" badgerhold:"-"`
}

// RequiredFields reports whether TimeConfig carries everything Frequency
// needs. Centralising this keeps the data-invariant check in one place
// (schedule creation/update and trigger construction both call it).
func (t TimeConfig) RequiredFields(f Frequency) error {
	switch f {
	case FrequencyHourly:
		if t.Minute < 0 || t.Minute > 59 {
			return errInvalidTimeConfig("hourly requires minute in [0,59]")
		}
	case FrequencyDaily:
		if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
			return errInvalidTimeConfig("daily requires hour in [0,23] and minute in [0,59]")
		}
	case FrequencyWeekly:
		if t.DayOfWeek == "" {
			return errInvalidTimeConfig("weekly requires day_of_week")
		}
		if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
			return errInvalidTimeConfig("weekly requires hour in [0,23] and minute in [0,59]")
		}
	case FrequencyMonthly:
		if t.Day < 1 || t.Day > 31 {
			return errInvalidTimeConfig("monthly requires day in [1,31]")
		}
		if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
			return errInvalidTimeConfig("monthly requires hour in [0,23] and minute in [0,59]")
		}
	case FrequencyCustomCron:
		if t.CronExpr == "" {
			return errInvalidTimeConfig("custom-cron requires cron_expr")
		}
	default:
		return errInvalidTimeConfig("unknown frequency: " + string(f))
	}
	return nil
}

// Schedule represents a recurring intent to scan one domain.
type Schedule struct {
	ID             string     `json:"id" badgerhold:"key"`
	DomainConfigID string     `json:"domain_config_id" badgerhold:"index"`
	Domain         string     `json:"domain"`
	ScanType       ScanType   `json:"scan_type"`
	ScanParams     ScanParams `json:"scan_params"`
	Frequency      Frequency  `json:"frequency"`
	TimeConfig     TimeConfig `json:"time_config"`
	Enabled        bool       `json:"enabled" badgerhold:"index"`
	ProfileID      string     `json:"profile_id,omitempty"`
	LastRun        *time.Time `json:"last_run,omitempty"`
	NextRun        *time.Time `json:"next_run,omitempty"`
	LastStatus     string     `json:"last_status,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// HashKey returns the scheduling-relevant subset the Watcher hashes to
// detect added/modified/removed schedules: domain, frequency, time_config,
// enabled, profile_id.
type HashKey struct {
	Domain     string
	Frequency  Frequency
	TimeConfig TimeConfig
	Enabled    bool
	ProfileID  string
}

func (s *Schedule) HashKey() HashKey {
	return HashKey{
		Domain:     s.Domain,
		Frequency:  s.Frequency,
		TimeConfig: s.TimeConfig,
		Enabled:    s.Enabled,
		ProfileID:  s.ProfileID,
	}
}

// CoerceMonthlyDay applies the "day >= 28 means last day of month" policy.
// Centralised per spec design notes: used by both validation and trigger
// construction so the two never disagree.
func CoerceMonthlyDay(day int) int {
	if day >= 28 {
		return 31 // sentinel consumed by scheduler.lastDayOfMonthSchedule; 31 always overflows to the true last day
	}
	return day
}

type invalidTimeConfigError string

func (e invalidTimeConfigError) Error() string { return string(e) }

func errInvalidTimeConfig(msg string) error { return invalidTimeConfigError(msg) }
