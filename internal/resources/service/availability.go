package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"booking-system/internal/auth"
	"booking-system/internal/clients"
	"booking-system/internal/domain/resource"
	"booking-system/internal/domain/tenant"
	"booking-system/pkg/cache"
)

// Slot is one bookable interval, boundaries in UTC.
type Slot struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Availability is the projection of one resource for one date.
type Availability struct {
	ResourceID uuid.UUID `json:"resource_id"`
	TenantID   uuid.UUID `json:"tenant_id"`
	Date       string    `json:"date"`
	Timezone   string    `json:"timezone"`
	Slots      []Slot    `json:"slots"`
}

// Availability projects the bookable slots of a resource on a date.
//
// The weekly schedule is clipped to the tenant's working hours, cut
// into booking_interval slices aligned to each clipped range's start,
// converted from tenant-local wall clock to UTC, then reduced by the
// resource's active bookings. Slots already started on the tenant's
// clock are dropped. The result is cached per resource and date.
func (s *Service) Availability(ctx context.Context, claims auth.Claims, resourceID uuid.UUID, date string) (Availability, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return Availability{}, &ValidationError{Reason: "date must be formatted YYYY-MM-DD"}
	}

	res, err := s.GetResource(ctx, claims, resourceID)
	if err != nil {
		return Availability{}, err
	}

	settings, err := s.settings.Settings(ctx, res.TenantID)
	if err != nil {
		return Availability{}, fmt.Errorf("%w: %v", ErrDependency, err)
	}
	loc, err := settings.Location()
	if err != nil {
		return Availability{}, fmt.Errorf("resolve tenant timezone: %w", err)
	}

	now := s.now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	reqDay := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	if reqDay.Before(today) {
		return Availability{}, &ValidationError{Reason: "date is in the past"}
	}
	if reqDay.After(today.AddDate(0, 0, settings.AdvanceBookingDays)) {
		return Availability{}, &ValidationError{
			Reason: fmt.Sprintf("date is beyond the %d-day booking horizon", settings.AdvanceBookingDays),
		}
	}

	key := cache.AvailabilityKey(resourceID, date)
	var cached Availability
	if s.cache.GetJSON(ctx, key, &cached) {
		return cached, nil
	}

	out := Availability{
		ResourceID: res.ID,
		TenantID:   res.TenantID,
		Date:       date,
		Timezone:   settings.Timezone,
		Slots:      []Slot{},
	}
	if !res.IsBookable() {
		return out, nil
	}

	for _, span := range localSlots(res.Schedule.RangesFor(reqDay.Weekday()), settings) {
		start, err := tenant.LocalToUTC(day.Year(), day.Month(), day.Day(), span[0]/60, span[0]%60, loc)
		if err != nil {
			// Spring-forward gap, the wall-clock slot never happens.
			continue
		}
		end, err := tenant.LocalToUTC(day.Year(), day.Month(), day.Day(), span[1]/60, span[1]%60, loc)
		if err != nil {
			continue
		}
		if !start.After(now) {
			continue
		}
		out.Slots = append(out.Slots, Slot{StartTime: start, EndTime: end})
	}

	busy, err := s.bookings.ResourceWindow(ctx, res.ID, reqDay.UTC(), reqDay.AddDate(0, 0, 1).UTC())
	if err != nil {
		return Availability{}, fmt.Errorf("%w: %v", ErrDependency, err)
	}
	kept := out.Slots[:0]
	for _, slot := range out.Slots {
		if !overlapsAny(slot, busy) {
			kept = append(kept, slot)
		}
	}
	out.Slots = kept

	s.cache.SetJSON(ctx, key, out, s.cache.AvailabilityTTL())
	return out, nil
}

// localSlots clips each schedule range to working hours and cuts it
// into interval-wide slots aligned to the clipped start. Tail
// fragments shorter than the interval are dropped. Spans are minute
// offsets from local midnight.
func localSlots(ranges []resource.TimeRange, s tenant.Settings) [][2]int {
	var out [][2]int
	for _, r := range ranges {
		start := r.Start.Minutes()
		if wh := s.WorkingHoursStart.Minutes(); wh > start {
			start = wh
		}
		end := r.End.Minutes()
		if wh := s.WorkingHoursEnd.Minutes(); wh < end {
			end = wh
		}
		for from := start; from+s.BookingInterval <= end; from += s.BookingInterval {
			out = append(out, [2]int{from, from + s.BookingInterval})
		}
	}
	return out
}

func overlapsAny(slot Slot, busy []clients.BookingInterval) bool {
	for _, b := range busy {
		if b.StartTime.Before(slot.EndTime) && b.EndTime.After(slot.StartTime) {
			return true
		}
	}
	return false
}
