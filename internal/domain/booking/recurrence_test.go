package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func TestRecurringPatternValidate(t *testing.T) {
	tests := []struct {
		name    string
		pattern RecurringPattern
		wantErr bool
	}{
		{"daily ok", RecurringPattern{Frequency: FrequencyDaily, Interval: 1}, false},
		{"weekly with days", RecurringPattern{Frequency: FrequencyWeekly, Interval: 2, DaysOfWeek: []int{0, 4}}, false},
		{"unknown frequency", RecurringPattern{Frequency: "yearly", Interval: 1}, true},
		{"interval zero", RecurringPattern{Frequency: FrequencyDaily, Interval: 0}, true},
		{"interval too large", RecurringPattern{Frequency: FrequencyWeekly, Interval: 53}, true},
		{"day out of range", RecurringPattern{Frequency: FrequencyWeekly, Interval: 1, DaysOfWeek: []int{7}}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.pattern.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestExpandDaily(t *testing.T) {
	start := time.Date(2025, 12, 1, 14, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	pattern := RecurringPattern{
		Frequency: FrequencyDaily,
		Interval:  2,
		EndDate:   &Date{Year: 2025, Month: time.December, Day: 7},
	}
	occ, err := pattern.Expand(start, end, time.UTC)
	require.NoError(t, err)
	require.Len(t, occ, 4)

	for i, o := range occ {
		assert.Equal(t, start.AddDate(0, 0, 2*i), o.Start)
		assert.Equal(t, time.Hour, o.End.Sub(o.Start))
	}
}

func TestExpandDailyOpenEndedIsCapped(t *testing.T) {
	start := time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC)
	pattern := RecurringPattern{Frequency: FrequencyDaily, Interval: 1}

	occ, err := pattern.Expand(start, start.Add(30*time.Minute), time.UTC)
	require.NoError(t, err)
	assert.Len(t, occ, 365)
}

func TestExpandWeeklySameWeekday(t *testing.T) {
	// 2025-12-01 is a Monday.
	start := time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC)
	pattern := RecurringPattern{
		Frequency: FrequencyWeekly,
		Interval:  1,
		EndDate:   &Date{Year: 2025, Month: time.December, Day: 31},
	}
	occ, err := pattern.Expand(start, start.Add(time.Hour), time.UTC)
	require.NoError(t, err)
	require.Len(t, occ, 5)
	for _, o := range occ {
		assert.Equal(t, time.Monday, o.Start.Weekday())
	}
}

func TestExpandWeeklyFiltersFirstOccurrence(t *testing.T) {
	// 2025-12-03 is a Wednesday; the pattern only wants Mondays, so
	// the seed itself must not be emitted.
	start := time.Date(2025, 12, 3, 10, 0, 0, 0, time.UTC)
	pattern := RecurringPattern{
		Frequency:  FrequencyWeekly,
		Interval:   1,
		DaysOfWeek: []int{0},
		EndDate:    &Date{Year: 2025, Month: time.December, Day: 22},
	}
	occ, err := pattern.Expand(start, start.Add(time.Hour), time.UTC)
	require.NoError(t, err)
	require.Len(t, occ, 3)
	assert.Equal(t, time.Date(2025, 12, 8, 10, 0, 0, 0, time.UTC), occ[0].Start)
	for _, o := range occ {
		assert.Equal(t, time.Monday, o.Start.Weekday())
	}
}

func TestExpandWeeklyTwoDaysWithInterval(t *testing.T) {
	// Mondays and Wednesdays, every second week: the wrap from
	// Wednesday skips a whole week.
	start := time.Date(2025, 12, 1, 8, 0, 0, 0, time.UTC)
	pattern := RecurringPattern{
		Frequency:  FrequencyWeekly,
		Interval:   2,
		DaysOfWeek: []int{0, 2},
		EndDate:    &Date{Year: 2025, Month: time.December, Day: 20},
	}
	occ, err := pattern.Expand(start, start.Add(time.Hour), time.UTC)
	require.NoError(t, err)

	var got []string
	for _, o := range occ {
		got = append(got, o.Start.Format("2006-01-02"))
	}
	assert.Equal(t, []string{"2025-12-01", "2025-12-03", "2025-12-15", "2025-12-17"}, got)
}

func TestExpandMonthlyClampsShortMonths(t *testing.T) {
	start := time.Date(2026, 1, 31, 9, 0, 0, 0, time.UTC)
	pattern := RecurringPattern{
		Frequency: FrequencyMonthly,
		Interval:  1,
		EndDate:   &Date{Year: 2026, Month: time.April, Day: 30},
	}
	occ, err := pattern.Expand(start, start.Add(time.Hour), time.UTC)
	require.NoError(t, err)

	var got []string
	for _, o := range occ {
		got = append(got, o.Start.Format("2006-01-02"))
	}
	// Clamped to Feb 28 and the clamp compounds from there.
	assert.Equal(t, []string{"2026-01-31", "2026-02-28", "2026-03-28", "2026-04-28"}, got)
}

func TestExpandUsesTenantWeekdays(t *testing.T) {
	loc := mustLoc(t, "America/Sao_Paulo")

	// 02:00 UTC on Tuesday is still Monday 23:00 in São Paulo, so a
	// Monday-only pattern must emit it.
	start := time.Date(2025, 12, 2, 2, 0, 0, 0, time.UTC)
	require.Equal(t, time.Monday, start.In(loc).Weekday())

	pattern := RecurringPattern{
		Frequency:  FrequencyWeekly,
		Interval:   1,
		DaysOfWeek: []int{0},
		EndDate:    &Date{Year: 2025, Month: time.December, Day: 8},
	}
	occ, err := pattern.Expand(start, start.Add(30*time.Minute), loc)
	require.NoError(t, err)
	require.NotEmpty(t, occ)
	assert.Equal(t, start, occ[0].Start)
}

func TestDateJSONRoundTrip(t *testing.T) {
	var d Date
	require.NoError(t, d.UnmarshalJSON([]byte(`"2025-12-31"`)))
	assert.Equal(t, Date{Year: 2025, Month: time.December, Day: 31}, d)

	raw, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `"2025-12-31"`, string(raw))

	assert.Error(t, d.UnmarshalJSON([]byte(`"31/12/2025"`)))
}
