// Package booking contains the booking aggregate: lifecycle status,
// recurrence patterns, and the predicates the admission engine and
// cancellation policy are built on.
package booking

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status of a booking.
//
// STATE MACHINE:
//
//	pendente ──> confirmado ──> cancelado
//	    │                          ▲
//	    └──────────────────────────┘
//
// pendente is the admission result; confirmado is an administrative
// promotion; cancelado is terminal. Cascade handlers force
// * -> cancelado unconditionally because the triggering entity no
// longer exists.
type Status string

const (
	// StatusPendente is assigned at admission and awaits
	// confirmation.
	StatusPendente Status = "pendente"
	// StatusConfirmado marks an acknowledged booking.
	StatusConfirmado Status = "confirmado"
	// StatusCancelado is terminal.
	StatusCancelado Status = "cancelado"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPendente, StatusConfirmado, StatusCancelado:
		return true
	}
	return false
}

// CanTransitionTo enforces the state machine above.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPendente:
		return next == StatusConfirmado || next == StatusCancelado
	case StatusConfirmado:
		return next == StatusCancelado
	}
	return false
}

// IsActive reports whether the booking still occupies its interval.
// Only active bookings count for conflicts and availability.
func (s Status) IsActive() bool {
	return s == StatusPendente || s == StatusConfirmado
}

type Booking struct {
	ID                 uuid.UUID         `db:"id" json:"id"`
	TenantID           uuid.UUID         `db:"tenant_id" json:"tenant_id"`
	ResourceID         uuid.UUID         `db:"resource_id" json:"resource_id"`
	UserID             uuid.UUID         `db:"user_id" json:"user_id"`
	ClientID           *uuid.UUID        `db:"client_id" json:"client_id,omitempty"`
	StartTime          time.Time         `db:"start_time" json:"start_time"`
	EndTime            time.Time         `db:"end_time" json:"end_time"`
	Status             Status            `db:"status" json:"status"`
	Notes              *string           `db:"notes" json:"notes,omitempty"`
	RecurringEnabled   bool              `db:"recurring_enabled" json:"recurring_enabled"`
	RecurringPattern   *RecurringPattern `db:"recurring_pattern" json:"recurring_pattern,omitempty"`
	RecurrenceGroupID  *uuid.UUID        `db:"recurrence_group_id" json:"recurrence_group_id,omitempty"`
	ConfirmationCode   string            `db:"confirmation_code" json:"confirmation_code"`
	CancelledAt        *time.Time        `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancelledBy        *uuid.UUID        `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CancellationReason *string           `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time         `db:"updated_at" json:"updated_at"`
}

// New builds a pendente booking over normalized UTC instants.
func New(tenantID, resourceID, userID uuid.UUID, clientID *uuid.UUID, start, end time.Time, notes *string) Booking {
	now := time.Now().UTC()
	return Booking{
		ID:               uuid.New(),
		TenantID:         tenantID,
		ResourceID:       resourceID,
		UserID:           userID,
		ClientID:         clientID,
		StartTime:        start.UTC(),
		EndTime:          end.UTC(),
		Status:           StatusPendente,
		Notes:            notes,
		ConfirmationCode: NewConfirmationCode(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// NewConfirmationCode mints the short human-facing code printed on
// confirmations, e.g. "BK-1A2B3C4D".
func NewConfirmationCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "BK-" + strings.ToUpper(raw[:8])
}

func (b Booking) Duration() time.Duration {
	return b.EndTime.Sub(b.StartTime)
}

func (b Booking) IsActive() bool {
	return b.Status.IsActive()
}

// Overlaps reports half-open interval overlap with [start, end).
func (b Booking) Overlaps(start, end time.Time) bool {
	return b.StartTime.Before(end) && b.EndTime.After(start)
}

// CanBeCancelled applies the tenant's cancellation window: now plus
// the window must not pass the start.
func (b Booking) CanBeCancelled(now time.Time, cancellationHours int) bool {
	if !b.Status.IsActive() {
		return false
	}
	deadline := b.StartTime.Add(-time.Duration(cancellationHours) * time.Hour)
	return !now.After(deadline)
}

// Cancel moves the booking to cancelado and records who and why.
func (b *Booking) Cancel(now time.Time, by *uuid.UUID, reason *string) {
	b.Status = StatusCancelado
	at := now.UTC()
	b.CancelledAt = &at
	b.CancelledBy = by
	b.CancellationReason = reason
	b.UpdatedAt = at
}

// Conflict is the caller-facing projection of a booking that blocked
// admission.
type Conflict struct {
	BookingID uuid.UUID `json:"booking_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}
