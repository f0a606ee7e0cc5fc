package booking

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

const (
	// maxOccurrences bounds open-ended expansions.
	maxOccurrences = 365
	// maxIterations bounds end-dated expansions against degenerate
	// patterns that rarely emit.
	maxIterations = 1000
)

// RecurringPattern describes how one booking repeats. days_of_week
// uses 0=Monday .. 6=Sunday and only applies to weekly patterns.
type RecurringPattern struct {
	Frequency  Frequency `json:"frequency"`
	Interval   int       `json:"interval"`
	EndDate    *Date     `json:"end_date,omitempty"`
	DaysOfWeek []int     `json:"days_of_week,omitempty"`
}

func (p RecurringPattern) Validate() error {
	switch p.Frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
	default:
		return fmt.Errorf("invalid frequency %q: must be daily, weekly or monthly", p.Frequency)
	}
	if p.Interval < 1 || p.Interval > 52 {
		return fmt.Errorf("interval must be between 1 and 52, got %d", p.Interval)
	}
	for _, d := range p.DaysOfWeek {
		if d < 0 || d > 6 {
			return fmt.Errorf("days_of_week values must be between 0 (Monday) and 6 (Sunday), got %d", d)
		}
	}
	return nil
}

func (p *RecurringPattern) Scan(value any) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into RecurringPattern", value)
	}
	return json.Unmarshal(data, p)
}

func (p RecurringPattern) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Occurrence is one expanded repetition.
type Occurrence struct {
	Start time.Time
	End   time.Time
}

// Expand generates the occurrence set for a first occurrence of
// [start, end). Pass start and end in the tenant's zone: calendar
// steps then keep the local wall clock across DST shifts while every
// occurrence keeps the original duration. The first occurrence is
// itself subject to the days_of_week filter. Monthly steps clamp to
// the last day of shorter months and subsequent steps compound from
// the clamped date.
func (p RecurringPattern) Expand(start, end time.Time, loc *time.Location) ([]Occurrence, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	duration := end.Sub(start)
	filterDays := p.Frequency == FrequencyWeekly && len(p.DaysOfWeek) > 0

	limit := maxOccurrences
	if p.EndDate != nil {
		limit = maxIterations
	}

	var out []Occurrence
	current := start
	for iteration := 0; iteration < limit; iteration++ {
		local := current.In(loc)
		if p.EndDate != nil && p.EndDate.Before(local) {
			break
		}

		if !filterDays || containsInt(p.DaysOfWeek, mondayIndexed(local.Weekday())) {
			out = append(out, Occurrence{Start: current, End: current.Add(duration)})
			if len(out) >= maxOccurrences {
				break
			}
		}

		switch p.Frequency {
		case FrequencyDaily:
			current = current.AddDate(0, 0, p.Interval)
		case FrequencyWeekly:
			if filterDays {
				current = nextListedWeekday(current, local, p.DaysOfWeek, p.Interval)
			} else {
				current = current.AddDate(0, 0, 7*p.Interval)
			}
		case FrequencyMonthly:
			current = addMonthsClamped(current, p.Interval, loc)
		}
	}
	return out, nil
}

// nextListedWeekday advances to the next listed weekday: first a later
// day in the same week, otherwise the earliest listed day interval
// weeks ahead.
func nextListedWeekday(current time.Time, local time.Time, days []int, interval int) time.Time {
	sorted := append([]int(nil), days...)
	sort.Ints(sorted)

	weekday := mondayIndexed(local.Weekday())
	for _, day := range sorted {
		if day > weekday {
			return current.AddDate(0, 0, day-weekday)
		}
	}
	ahead := 7 - weekday + sorted[0]
	if interval > 1 {
		ahead += (interval - 1) * 7
	}
	return current.AddDate(0, 0, ahead)
}

// addMonthsClamped adds months keeping the day-of-month, clamped to
// the target month's length (Jan 31 + 1 month = Feb 28).
func addMonthsClamped(t time.Time, months int, loc *time.Location) time.Time {
	local := t.In(loc)
	year, month, day := local.Date()
	month += time.Month(months)
	for month > 12 {
		month -= 12
		year++
	}
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, local.Hour(), local.Minute(), local.Second(), 0, loc)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// mondayIndexed converts Go's Sunday-first weekday to the pattern's
// Monday-first index.
func mondayIndexed(d time.Weekday) int {
	return (int(d) + 6) % 7
}

func containsInt(list []int, v int) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// Date is a calendar day serialized "YYYY-MM-DD".
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// Before reports whether the local instant falls past the date.
func (d Date) Before(local time.Time) bool {
	y, m, day := local.Date()
	if y != d.Year {
		return y > d.Year
	}
	if m != d.Month {
		return m > d.Month
	}
	return day > d.Day
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) > 10 {
		raw = raw[:10]
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return fmt.Errorf("invalid end_date %q: want YYYY-MM-DD", raw)
	}
	d.Year, d.Month, d.Day = parsed.Date()
	return nil
}
