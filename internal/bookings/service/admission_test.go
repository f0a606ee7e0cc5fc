package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booking-system/internal/auth"
	"booking-system/internal/domain/booking"
	"booking-system/internal/domain/event"
	"booking-system/internal/domain/resource"
	"booking-system/internal/domain/user"
)

func TestCreateAdmitsPendingBooking(t *testing.T) {
	env := newBookingEnv(t)

	// Monday 2025-12-08, 11:00-12:00 in Sao Paulo.
	created, err := env.svc.Create(context.Background(), env.booker, CreateRequest{
		ResourceID: env.resourceID,
		StartTime:  "2025-12-08T14:00:00Z",
		EndTime:    "2025-12-08T15:00:00Z",
	})
	require.NoError(t, err)
	require.Len(t, created, 1)

	b := created[0]
	assert.Equal(t, booking.StatusPendente, b.Status)
	assert.Equal(t, env.booker.UserID, b.UserID)
	assert.Equal(t, env.tenantID, b.TenantID)
	assert.True(t, strings.HasPrefix(b.ConfirmationCode, "BK-"))
	assert.Len(t, b.ConfirmationCode, 11)
	assert.False(t, b.RecurringEnabled)

	require.Len(t, env.repo.streamed, 1)
	assert.Equal(t, "booking-events", env.repo.streamed[0].stream)
	assert.Equal(t, event.BookingCreated, env.repo.streamed[0].env.Type)
	var payload event.BookingCreatedPayload
	require.NoError(t, env.repo.streamed[0].env.Decode(&payload))
	assert.Equal(t, b.ID, payload.BookingID)
	assert.Equal(t, env.resourceID, payload.ResourceID)
	assert.Equal(t, "pendente", payload.Status)
	assert.True(t, payload.StartTime.Equal(time.Date(2025, 12, 8, 14, 0, 0, 0, time.UTC)))
}

func TestCreateConflictPersistsNothing(t *testing.T) {
	env := newBookingEnv(t)
	first := env.admit(t, "2025-12-08T14:00:00Z", "2025-12-08T15:00:00Z")
	staged := len(env.repo.streamed)

	_, err := env.svc.Create(context.Background(), env.booker, CreateRequest{
		ResourceID: env.resourceID,
		StartTime:  "2025-12-08T14:30:00Z",
		EndTime:    "2025-12-08T15:30:00Z",
	})
	var cerr *ConflictError
	require.ErrorAs(t, err, &cerr)
	require.Len(t, cerr.Conflicts, 1)
	assert.Equal(t, first.ID, cerr.Conflicts[0].BookingID)

	assert.Len(t, env.repo.bookings, 1)
	assert.Len(t, env.repo.streamed, staged)
}

func TestCreateGateFailures(t *testing.T) {
	env := newBookingEnv(t)

	narrow := resource.New(resource.CreateRequest{
		TenantID:   env.tenantID,
		CategoryID: uuid.New(),
		Name:       "Sala Leblon",
		Schedule:   resource.WeeklySchedule{"monday": {mustSpan(t, "08:00-10:00")}},
	})
	env.res.resources[narrow.ID] = narrow

	tests := []struct {
		name       string
		resourceID uuid.UUID
		start, end string
		reason     string
	}{
		{
			name:  "start in the past",
			start: "2025-11-30T14:00:00Z", end: "2025-11-30T15:00:00Z",
			reason: "start_time must be in the future",
		},
		{
			name:  "beyond the booking horizon",
			start: "2026-01-05T14:00:00Z", end: "2026-01-05T15:00:00Z",
			reason: "beyond the 30-day booking horizon",
		},
		{
			name:  "duration not a multiple of the interval",
			start: "2025-12-08T14:00:00Z", end: "2025-12-08T14:25:00Z",
			reason: "multiple of 30 minutes",
		},
		{
			name:  "crosses the local midnight",
			start: "2025-12-08T02:00:00Z", end: "2025-12-08T03:30:00Z",
			reason: "same local day",
		},
		{
			name:  "outside working hours",
			start: "2025-12-08T22:00:00Z", end: "2025-12-08T23:00:00Z",
			reason: "within working hours 08:00-18:00",
		},
		{
			name:  "closed weekday",
			start: "2025-12-07T14:00:00Z", end: "2025-12-07T15:00:00Z",
			reason: "closed on sunday",
		},
		{
			name:       "outside every schedule range",
			resourceID: narrow.ID,
			start:      "2025-12-08T14:00:00Z", end: "2025-12-08T15:00:00Z",
			reason: "does not fit any availability range",
		},
		{
			name:  "end before start",
			start: "2025-12-08T15:00:00Z", end: "2025-12-08T14:00:00Z",
			reason: "end_time must be after start_time",
		},
		{
			name:  "unparseable timestamp",
			start: "next tuesday", end: "2025-12-08T15:00:00Z",
			reason: "invalid timestamp",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resourceID := tt.resourceID
			if resourceID == uuid.Nil {
				resourceID = env.resourceID
			}
			_, err := env.svc.Create(context.Background(), env.booker, CreateRequest{
				ResourceID: resourceID,
				StartTime:  tt.start,
				EndTime:    tt.end,
			})
			var verr *ValidationError
			require.ErrorAs(t, err, &verr, "want validation error, got %v", err)
			assert.Contains(t, verr.Reason, tt.reason)
		})
	}
	assert.Empty(t, env.repo.bookings)
}

func TestCreateNaiveTimesAreTenantLocal(t *testing.T) {
	env := newBookingEnv(t)

	created, err := env.svc.Create(context.Background(), env.booker, CreateRequest{
		ResourceID: env.resourceID,
		StartTime:  "2025-12-08T14:00",
		EndTime:    "2025-12-08T15:00",
	})
	require.NoError(t, err)
	require.Len(t, created, 1)

	// 14:00 Sao Paulo wall clock is 17:00Z.
	assert.True(t, created[0].StartTime.Equal(time.Date(2025, 12, 8, 17, 0, 0, 0, time.UTC)))
	assert.True(t, created[0].EndTime.Equal(time.Date(2025, 12, 8, 18, 0, 0, 0, time.UTC)))
}

func TestCreateRejectsNonexistentLocalTime(t *testing.T) {
	env := newBookingEnv(t)
	env.settings.settings.Timezone = "America/New_York"

	// 2026-03-08 02:30 never happens in New York: clocks jump from
	// 02:00 to 03:00.
	_, err := env.svc.Create(context.Background(), env.booker, CreateRequest{
		ResourceID: env.resourceID,
		StartTime:  "2026-03-08T02:30",
		EndTime:    "2026-03-08T03:30",
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, env.repo.bookings)
}

func TestCreatePermissionAndTenancy(t *testing.T) {
	env := newBookingEnv(t)
	ctx := context.Background()
	req := CreateRequest{
		ResourceID: env.resourceID,
		StartTime:  "2025-12-08T14:00:00Z",
		EndTime:    "2025-12-08T15:00:00Z",
	}

	plain := auth.Claims{UserID: uuid.New(), TenantID: env.tenantID, UserType: "user"}
	env.perms.users[plain.UserID] = user.User{ID: plain.UserID, TenantID: env.tenantID}
	_, err := env.svc.Create(ctx, plain, req)
	assert.ErrorIs(t, err, ErrForbidden)

	onBehalf := req
	onBehalf.UserID = plain.UserID
	_, err = env.svc.Create(ctx, env.booker, onBehalf)
	assert.ErrorIs(t, err, ErrForbidden)

	// Admins book for anyone without a permission lookup.
	admin := auth.Claims{UserID: uuid.New(), TenantID: env.tenantID, UserType: "admin"}
	lookups := env.perms.calls
	created, err := env.svc.Create(ctx, admin, onBehalf)
	require.NoError(t, err)
	assert.Equal(t, plain.UserID, created[0].UserID)
	assert.Equal(t, lookups, env.perms.calls)

	foreign := req
	foreign.TenantID = uuid.New()
	foreign.StartTime = "2025-12-09T14:00:00Z"
	foreign.EndTime = "2025-12-09T15:00:00Z"
	_, err = env.svc.Create(ctx, env.booker, foreign)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCreateResourceGates(t *testing.T) {
	env := newBookingEnv(t)
	ctx := context.Background()
	at := func(id uuid.UUID) CreateRequest {
		return CreateRequest{
			ResourceID: id,
			StartTime:  "2025-12-08T14:00:00Z",
			EndTime:    "2025-12-08T15:00:00Z",
		}
	}

	_, err := env.svc.Create(ctx, env.booker, at(uuid.New()))
	assert.ErrorIs(t, err, ErrResourceNotFound)

	foreign := resource.New(resource.CreateRequest{
		TenantID:   uuid.New(),
		CategoryID: uuid.New(),
		Name:       "Sala alheia",
		Schedule:   resource.WeeklySchedule{"monday": {mustSpan(t, "08:00-18:00")}},
	})
	env.res.resources[foreign.ID] = foreign
	_, err = env.svc.Create(ctx, env.booker, at(foreign.ID))
	assert.ErrorIs(t, err, ErrResourceNotFound)

	broken := resource.New(resource.CreateRequest{
		TenantID:   env.tenantID,
		CategoryID: uuid.New(),
		Name:       "Projetor",
		Status:     resource.StatusManutencao,
		Schedule:   resource.WeeklySchedule{"monday": {mustSpan(t, "08:00-18:00")}},
	})
	env.res.resources[broken.ID] = broken
	_, err = env.svc.Create(ctx, env.booker, at(broken.ID))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "manutencao")
}

func TestCreateRefusesWithoutSettings(t *testing.T) {
	env := newBookingEnv(t)
	env.settings.err = errors.New("settings service down")

	_, err := env.svc.Create(context.Background(), env.booker, CreateRequest{
		ResourceID: env.resourceID,
		StartTime:  "2025-12-08T14:00:00Z",
		EndTime:    "2025-12-08T15:00:00Z",
	})
	assert.ErrorIs(t, err, ErrDependency)
	assert.Empty(t, env.repo.bookings)
}

func TestRecurringWeeklySharesGroup(t *testing.T) {
	env := newBookingEnv(t)

	created, err := env.svc.Create(context.Background(), env.booker, CreateRequest{
		ResourceID:       env.resourceID,
		StartTime:        "2025-12-08T14:00:00Z",
		EndTime:          "2025-12-08T15:00:00Z",
		RecurringEnabled: true,
		RecurringPattern: &booking.RecurringPattern{
			Frequency: booking.FrequencyWeekly,
			Interval:  1,
			EndDate:   &booking.Date{Year: 2025, Month: time.December, Day: 29},
		},
	})
	require.NoError(t, err)
	require.Len(t, created, 4)

	group := created[0].RecurrenceGroupID
	require.NotNil(t, group)
	for i, b := range created {
		assert.True(t, b.RecurringEnabled)
		require.NotNil(t, b.RecurrenceGroupID)
		assert.Equal(t, *group, *b.RecurrenceGroupID)
		want := time.Date(2025, 12, 8+7*i, 14, 0, 0, 0, time.UTC)
		assert.True(t, b.StartTime.Equal(want), "occurrence %d: got %s want %s", i, b.StartTime, want)
	}
	assert.Len(t, env.repo.eventsOfType(event.BookingCreated), 4)
}

func TestRecurringBatchIsAllOrNothing(t *testing.T) {
	env := newBookingEnv(t)

	// A pre-existing booking blocks the third Monday.
	blocker := booking.New(env.tenantID, env.resourceID, uuid.New(), nil,
		time.Date(2025, 12, 22, 14, 0, 0, 0, time.UTC),
		time.Date(2025, 12, 22, 15, 0, 0, 0, time.UTC), nil)
	env.repo.bookings[blocker.ID] = blocker

	_, err := env.svc.Create(context.Background(), env.booker, CreateRequest{
		ResourceID:       env.resourceID,
		StartTime:        "2025-12-08T14:00:00Z",
		EndTime:          "2025-12-08T15:00:00Z",
		RecurringEnabled: true,
		RecurringPattern: &booking.RecurringPattern{
			Frequency: booking.FrequencyWeekly,
			Interval:  1,
			EndDate:   &booking.Date{Year: 2025, Month: time.December, Day: 29},
		},
	})
	var cerr *ConflictError
	require.ErrorAs(t, err, &cerr)
	require.Len(t, cerr.Conflicts, 1)
	assert.Equal(t, blocker.ID, cerr.Conflicts[0].BookingID)

	assert.Len(t, env.repo.bookings, 1)
	assert.Empty(t, env.repo.streamed)
}

func TestRecurringGateFailureRejectsWholeBatch(t *testing.T) {
	env := newBookingEnv(t)

	// The fifth Monday lands beyond the 30-day horizon, so the whole
	// series is refused even though four occurrences would fit.
	_, err := env.svc.Create(context.Background(), env.booker, CreateRequest{
		ResourceID:       env.resourceID,
		StartTime:        "2025-12-08T14:00:00Z",
		EndTime:          "2025-12-08T15:00:00Z",
		RecurringEnabled: true,
		RecurringPattern: &booking.RecurringPattern{
			Frequency: booking.FrequencyWeekly,
			Interval:  1,
			EndDate:   &booking.Date{Year: 2026, Month: time.January, Day: 5},
		},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "horizon")
	assert.Empty(t, env.repo.bookings)
}

func TestRecurringRequiresPattern(t *testing.T) {
	env := newBookingEnv(t)

	_, err := env.svc.Create(context.Background(), env.booker, CreateRequest{
		ResourceID:       env.resourceID,
		StartTime:        "2025-12-08T14:00:00Z",
		EndTime:          "2025-12-08T15:00:00Z",
		RecurringEnabled: true,
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "recurring_pattern is required")
}

func TestRecurringMonthlyClampCompounds(t *testing.T) {
	env := newBookingEnv(t)
	env.settings.settings.AdvanceBookingDays = 365

	always := resource.New(resource.CreateRequest{
		TenantID:   env.tenantID,
		CategoryID: uuid.New(),
		Name:       "Quadra",
		Schedule: resource.WeeklySchedule{
			"monday": {mustSpan(t, "08:00-18:00")}, "tuesday": {mustSpan(t, "08:00-18:00")},
			"wednesday": {mustSpan(t, "08:00-18:00")}, "thursday": {mustSpan(t, "08:00-18:00")},
			"friday": {mustSpan(t, "08:00-18:00")}, "saturday": {mustSpan(t, "08:00-18:00")},
			"sunday": {mustSpan(t, "08:00-18:00")},
		},
	})
	env.res.resources[always.ID] = always

	// Dec 31 + 1 month clamps to Feb 28, and the clamp compounds:
	// the next step lands on Mar 28, not Mar 31.
	created, err := env.svc.Create(context.Background(), env.booker, CreateRequest{
		ResourceID:       always.ID,
		StartTime:        "2025-12-31T14:00:00Z",
		EndTime:          "2025-12-31T15:00:00Z",
		RecurringEnabled: true,
		RecurringPattern: &booking.RecurringPattern{
			Frequency: booking.FrequencyMonthly,
			Interval:  1,
			EndDate:   &booking.Date{Year: 2026, Month: time.March, Day: 31},
		},
	})
	require.NoError(t, err)
	require.Len(t, created, 4)

	want := []time.Time{
		time.Date(2025, 12, 31, 14, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 31, 14, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 28, 14, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 28, 14, 0, 0, 0, time.UTC),
	}
	for i, b := range created {
		assert.True(t, b.StartTime.Equal(want[i]), "occurrence %d: got %s want %s", i, b.StartTime, want[i])
	}
}
