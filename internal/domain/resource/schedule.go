package resource

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"booking-system/internal/domain/tenant"
)

// WeeklySchedule maps lowercase weekday names to the local-time
// ranges a resource is open. A missing day means closed. Ranges are
// half-open: "08:00-12:00" admits a booking ending exactly at 12:00.
type WeeklySchedule map[string][]TimeRange

var weekdayKeys = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

// KeyFor returns the schedule key of a weekday.
func KeyFor(d time.Weekday) string {
	return strings.ToLower(d.String())
}

// Validate checks weekday keys and every range.
func (ws WeeklySchedule) Validate() error {
	for day, ranges := range ws {
		if _, ok := weekdayKeys[day]; !ok {
			return fmt.Errorf("unknown weekday %q in availability_schedule", day)
		}
		for _, r := range ranges {
			if r.End.Minutes() <= r.Start.Minutes() {
				return fmt.Errorf("invalid range %s on %s: end must be after start", r, day)
			}
		}
	}
	return nil
}

// RangesFor returns the ranges of a weekday, nil when closed.
func (ws WeeklySchedule) RangesFor(d time.Weekday) []TimeRange {
	return ws[KeyFor(d)]
}

func (ws *WeeklySchedule) Scan(value any) error {
	if value == nil {
		*ws = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into WeeklySchedule", value)
	}
	return json.Unmarshal(data, ws)
}

func (ws WeeklySchedule) Value() (driver.Value, error) {
	if ws == nil {
		return json.Marshal(map[string][]TimeRange{})
	}
	return json.Marshal(map[string][]TimeRange(ws))
}

// TimeRange is a local-time interval, serialized "HH:MM-HH:MM".
type TimeRange struct {
	Start tenant.TimeOfDay
	End   tenant.TimeOfDay
}

// ParseRange parses "HH:MM-HH:MM".
func ParseRange(raw string) (TimeRange, error) {
	parts := strings.SplitN(raw, "-", 2)
	if len(parts) != 2 {
		return TimeRange{}, fmt.Errorf("invalid time range %q", raw)
	}
	start, err := tenant.ParseTimeOfDay(strings.TrimSpace(parts[0]))
	if err != nil {
		return TimeRange{}, err
	}
	end, err := tenant.ParseTimeOfDay(strings.TrimSpace(parts[1]))
	if err != nil {
		return TimeRange{}, err
	}
	return TimeRange{Start: start, End: end}, nil
}

func (r TimeRange) String() string {
	return r.Start.String() + "-" + r.End.String()
}

// Contains reports half-open containment of [startMin, endMin).
func (r TimeRange) Contains(startMin, endMin int) bool {
	return r.Start.Minutes() <= startMin && endMin <= r.End.Minutes()
}

func (r TimeRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *TimeRange) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseRange(raw)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
