package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/cookiescan/internal/models"
)

func TestBuildSchedule_MonthlyDay30FiresInFebruary(t *testing.T) {
	sched, err := BuildSchedule(models.FrequencyMonthly, models.TimeConfig{Day: 30, Hour: 9, Minute: 0})
	require.NoError(t, err)

	from := time.Date(2026, time.January, 31, 9, 0, 0, 0, time.UTC)
	next := sched.Next(from)

	assert.Equal(t, time.February, next.Month())
	assert.Equal(t, 28, next.Day(), "2026 is not a leap year, last day of February is the 28th")
}

func TestBuildSchedule_WeeklyLongAndShortDayNamesAreEqual(t *testing.T) {
	long, err := BuildSchedule(models.FrequencyWeekly, models.TimeConfig{DayOfWeek: "Monday", Hour: 9, Minute: 0})
	require.NoError(t, err)
	short, err := BuildSchedule(models.FrequencyWeekly, models.TimeConfig{DayOfWeek: "mon", Hour: 9, Minute: 0})
	require.NoError(t, err)

	from := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, long.Next(from), short.Next(from))
}

func TestBuildSchedule_InvalidFrequencyRejected(t *testing.T) {
	_, err := BuildSchedule(models.Frequency("biannual"), models.TimeConfig{})
	assert.Error(t, err)
}
