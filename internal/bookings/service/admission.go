package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"booking-system/internal/auth"
	"booking-system/internal/clients"
	"booking-system/internal/domain/booking"
	"booking-system/internal/domain/event"
	"booking-system/internal/domain/resource"
	"booking-system/internal/domain/tenant"
	"booking-system/internal/domain/user"
)

type CreateRequest struct {
	TenantID         uuid.UUID                 `json:"tenant_id"`
	ResourceID       uuid.UUID                 `json:"resource_id"`
	UserID           uuid.UUID                 `json:"user_id"`
	ClientID         *uuid.UUID                `json:"client_id"`
	StartTime        string                    `json:"start_time"`
	EndTime          string                    `json:"end_time"`
	Notes            *string                   `json:"notes"`
	RecurringEnabled bool                      `json:"recurring_enabled"`
	RecurringPattern *booking.RecurringPattern `json:"recurring_pattern"`
}

// Create admits one booking, or a whole recurrence group as an
// all-or-nothing batch. Every occurrence passes the policy gates
// first; then the conflict probe, the inserts and the staged
// booking.created events commit in one serializable transaction. A
// ConflictError means nothing was written.
func (s *Service) Create(ctx context.Context, claims auth.Claims, req CreateRequest) ([]booking.Booking, error) {
	tenantID := req.TenantID
	if tenantID == uuid.Nil {
		tenantID = claims.TenantID
	}
	if tenantID != claims.TenantID {
		return nil, ErrForbidden
	}
	holder := req.UserID
	if holder == uuid.Nil {
		holder = claims.UserID
	}
	if holder != claims.UserID && !claims.IsAdmin() {
		return nil, ErrForbidden
	}
	if req.ResourceID == uuid.Nil {
		return nil, &ValidationError{Reason: "resource_id is required"}
	}
	if req.StartTime == "" || req.EndTime == "" {
		return nil, &ValidationError{Reason: "start_time and end_time are required"}
	}

	if err := s.permission(ctx, claims, func(p user.Permissions) bool { return p.CanBook }); err != nil {
		return nil, err
	}

	settings, err := s.settings.Settings(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDependency, err)
	}
	loc, err := settings.Location()
	if err != nil {
		return nil, fmt.Errorf("resolve tenant timezone: %w", err)
	}

	res, err := s.resolveResource(ctx, tenantID, req.ResourceID)
	if err != nil {
		return nil, err
	}

	start, err := parseTime(req.StartTime, loc)
	if err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}
	end, err := parseTime(req.EndTime, loc)
	if err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}
	if !end.After(start) {
		return nil, &ValidationError{Reason: "end_time must be after start_time"}
	}

	occurrences := []booking.Occurrence{{Start: start, End: end}}
	var groupID *uuid.UUID
	if req.RecurringEnabled {
		if req.RecurringPattern == nil {
			return nil, &ValidationError{Reason: "recurring_pattern is required when recurring_enabled is set"}
		}
		occurrences, err = req.RecurringPattern.Expand(start.In(loc), end.In(loc), loc)
		if err != nil {
			return nil, &ValidationError{Reason: err.Error()}
		}
		if len(occurrences) == 0 {
			return nil, &ValidationError{Reason: "recurring_pattern yields no occurrences"}
		}
		id := uuid.New()
		groupID = &id
	}

	now := s.now()
	for _, occ := range occurrences {
		if err := checkAdmission(occ.Start, occ.End, now, loc, settings, res.Schedule); err != nil {
			return nil, err
		}
	}

	bookings := make([]booking.Booking, 0, len(occurrences))
	envs := make([]event.Envelope, 0, len(occurrences))
	for _, occ := range occurrences {
		b := booking.New(tenantID, res.ID, holder, req.ClientID, occ.Start, occ.End, req.Notes)
		if groupID != nil {
			b.RecurringEnabled = true
			b.RecurringPattern = req.RecurringPattern
			b.RecurrenceGroupID = groupID
		}
		env, err := createdEnv(b)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
		envs = append(envs, env)
	}

	conflicts, err := s.repo.CreateBatch(ctx, bookings, s.bookingStream, envs)
	if err != nil {
		return nil, fmt.Errorf("admit bookings: %w", err)
	}
	if len(conflicts) > 0 {
		return nil, &ConflictError{Conflicts: conflicts}
	}

	s.log.Info("bookings admitted",
		zap.Int("count", len(bookings)),
		zap.String("tenant_id", tenantID.String()),
		zap.String("resource_id", res.ID.String()))
	return bookings, nil
}

// resolveResource fetches the target resource through the resource
// service and applies the admission preconditions on it.
func (s *Service) resolveResource(ctx context.Context, tenantID, resourceID uuid.UUID) (resource.Resource, error) {
	res, err := s.resources.Get(ctx, resourceID)
	if err != nil {
		if errors.Is(err, clients.ErrNotFound) {
			return resource.Resource{}, ErrResourceNotFound
		}
		if errors.Is(err, clients.ErrDenied) {
			return resource.Resource{}, ErrForbidden
		}
		return resource.Resource{}, fmt.Errorf("%w: %v", ErrDependency, err)
	}
	if res.TenantID != tenantID {
		return resource.Resource{}, ErrResourceNotFound
	}
	if !res.IsBookable() {
		return resource.Resource{}, &ValidationError{Reason: fmt.Sprintf("resource is %s, not disponivel", res.Status)}
	}
	return res, nil
}

var (
	offsetLayouts = []string{time.RFC3339, "2006-01-02T15:04Z07:00"}
	naiveLayouts  = []string{"2006-01-02T15:04:05", "2006-01-02T15:04"}
)

// parseTime normalizes one timestamp. Offset-carrying inputs convert
// to UTC; naive inputs are wall clock in the tenant's zone, where a
// DST gap can reject them.
func parseTime(raw string, loc *time.Location) (time.Time, error) {
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return tenant.LocalToUTC(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), loc)
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", raw)
}

// checkAdmission runs the policy gates in their fixed order; the first
// failure wins. start and end are instants, now anchors the horizon.
//
// Order: future + horizon, duration multiple, working hours + single
// local day + open weekday, containment in one schedule range.
func checkAdmission(start, end, now time.Time, loc *time.Location, set tenant.Settings, sched resource.WeeklySchedule) error {
	startLocal := start.In(loc)
	endLocal := end.In(loc)

	if !start.After(now) {
		return &ValidationError{Reason: "start_time must be in the future"}
	}
	nowLocal := now.In(loc)
	horizon := time.Date(nowLocal.Year(), nowLocal.Month(), nowLocal.Day(), 0, 0, 0, 0, loc).
		AddDate(0, 0, set.AdvanceBookingDays)
	startDay := time.Date(startLocal.Year(), startLocal.Month(), startLocal.Day(), 0, 0, 0, 0, loc)
	if startDay.After(horizon) {
		return &ValidationError{Reason: fmt.Sprintf("start_time is beyond the %d-day booking horizon", set.AdvanceBookingDays)}
	}

	interval := time.Duration(set.BookingInterval) * time.Minute
	if d := end.Sub(start); d%interval != 0 {
		return &ValidationError{Reason: fmt.Sprintf("duration must be a multiple of %d minutes", set.BookingInterval)}
	}

	if startLocal.Year() != endLocal.Year() || startLocal.YearDay() != endLocal.YearDay() {
		return &ValidationError{Reason: "booking must start and end on the same local day"}
	}
	startMin := startLocal.Hour()*60 + startLocal.Minute()
	endMin := endLocal.Hour()*60 + endLocal.Minute()
	if startMin < set.WorkingHoursStart.Minutes() || endMin > set.WorkingHoursEnd.Minutes() {
		return &ValidationError{Reason: fmt.Sprintf("booking must stay within working hours %s-%s",
			set.WorkingHoursStart, set.WorkingHoursEnd)}
	}
	ranges := sched.RangesFor(startLocal.Weekday())
	if len(ranges) == 0 {
		return &ValidationError{Reason: "resource is closed on " + resource.KeyFor(startLocal.Weekday())}
	}
	for _, r := range ranges {
		if r.Contains(startMin, endMin) {
			return nil
		}
	}
	return &ValidationError{Reason: "booking does not fit any availability range of the resource"}
}

func createdEnv(b booking.Booking) (event.Envelope, error) {
	return event.New(event.BookingCreated, b.TenantID, event.BookingCreatedPayload{
		BookingID:  b.ID,
		TenantID:   b.TenantID,
		ResourceID: b.ResourceID,
		UserID:     b.UserID,
		Status:     string(b.Status),
		StartTime:  b.StartTime,
		EndTime:    b.EndTime,
	})
}
