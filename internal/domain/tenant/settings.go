package tenant

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Settings is the per-tenant scheduling policy. It is embedded on the
// tenant row as a JSONB document and cached under
// settings:tenant:<id>, so every field must survive a JSON round
// trip.
type Settings struct {
	BusinessType       string    `json:"business_type"`
	Timezone           string    `json:"timezone"`
	WorkingHoursStart  TimeOfDay `json:"working_hours_start"`
	WorkingHoursEnd    TimeOfDay `json:"working_hours_end"`
	BookingInterval    int       `json:"booking_interval"`
	AdvanceBookingDays int       `json:"advance_booking_days"`
	CancellationHours  int       `json:"cancellation_hours"`
	CustomLabels       Labels    `json:"custom_labels"`
}

// Labels is the white-label vocabulary shown to a tenant's end users.
type Labels struct {
	ResourceSingular string `json:"resource_singular"`
	ResourcePlural   string `json:"resource_plural"`
	BookingLabel     string `json:"booking_label"`
	UserLabel        string `json:"user_label"`
}

// DefaultSettings describe a fresh tenant before any customization.
func DefaultSettings() Settings {
	return Settings{
		BusinessType:       "generic",
		Timezone:           "UTC",
		WorkingHoursStart:  TimeOfDay{Hour: 8},
		WorkingHoursEnd:    TimeOfDay{Hour: 18},
		BookingInterval:    30,
		AdvanceBookingDays: 30,
		CancellationHours:  24,
		CustomLabels: Labels{
			ResourceSingular: "Recurso",
			ResourcePlural:   "Recursos",
			BookingLabel:     "Reserva",
			UserLabel:        "Usuário",
		},
	}
}

// Validate rejects settings that would make scheduling undecidable.
// A booking interval that divides the working span evenly is
// recommended but not required.
func (s Settings) Validate() error {
	if _, err := s.Location(); err != nil {
		return fmt.Errorf("unknown timezone %q", s.Timezone)
	}
	if s.WorkingHoursEnd.Minutes() <= s.WorkingHoursStart.Minutes() {
		return errors.New("working_hours_end must be after working_hours_start")
	}
	if s.BookingInterval < 5 {
		return errors.New("booking_interval must be at least 5 minutes")
	}
	if s.AdvanceBookingDays < 0 {
		return errors.New("advance_booking_days must not be negative")
	}
	if s.CancellationHours < 0 {
		return errors.New("cancellation_hours must not be negative")
	}
	return nil
}

// Location resolves the tenant's IANA timezone.
func (s Settings) Location() (*time.Location, error) {
	return time.LoadLocation(s.Timezone)
}

// Scan implements sql.Scanner for the JSONB settings column.
func (s *Settings) Scan(value any) error {
	if value == nil {
		*s = DefaultSettings()
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Settings", value)
	}
	return json.Unmarshal(data, s)
}

// Value implements driver.Valuer for the JSONB settings column.
func (s Settings) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// TimeOfDay is a wall-clock time without a date, serialized "HH:MM".
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay accepts "HH:MM" and tolerates a trailing ":SS".
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	var h, m, sec int
	if _, err := fmt.Sscanf(raw, "%d:%d:%d", &h, &m, &sec); err != nil {
		if _, err := fmt.Sscanf(raw, "%d:%d", &h, &m); err != nil {
			return TimeOfDay{}, fmt.Errorf("invalid time of day %q", raw)
		}
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q", raw)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

// Minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ErrNonexistentLocalTime marks wall-clock inputs that fall into a
// DST spring-forward gap and therefore denote no instant at all.
var ErrNonexistentLocalTime = errors.New("local time does not exist in this timezone")

// LocalToUTC interprets wall-clock components in loc and returns the
// UTC instant. Nonexistent local times are rejected; ambiguous ones
// (fall-back overlap) resolve to the earlier UTC offset.
func LocalToUTC(year int, month time.Month, day, hour, minute int, loc *time.Location) (time.Time, error) {
	t := time.Date(year, month, day, hour, minute, 0, 0, loc)
	if t.Year() != year || t.Month() != month || t.Day() != day ||
		t.Hour() != hour || t.Minute() != minute {
		return time.Time{}, ErrNonexistentLocalTime
	}
	// One hour covers every real-world DST shift.
	if earlier := t.Add(-time.Hour); sameWallClock(earlier.In(loc), day, hour, minute) {
		t = earlier
	}
	return t.UTC(), nil
}

func sameWallClock(t time.Time, day, hour, minute int) bool {
	return t.Day() == day && t.Hour() == hour && t.Minute() == minute
}
