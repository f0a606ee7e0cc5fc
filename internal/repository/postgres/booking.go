package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"booking-system/internal/domain/booking"
	"booking-system/internal/domain/event"
)

const bookingColumns = `id, tenant_id, resource_id, user_id, client_id,
	start_time, end_time, status, notes, recurring_enabled, recurring_pattern,
	recurrence_group_id, confirmation_code, cancelled_at, cancelled_by,
	cancellation_reason, created_at, updated_at`

// serializationAttempts bounds retries of the admission transaction on
// SQLSTATE 40001.
const serializationAttempts = 3

// errAdmissionConflict aborts the admission transaction so nothing is
// written; the collected conflicts travel out alongside it.
var errAdmissionConflict = errors.New("admission conflict")

type BookingRepository struct {
	db *pgxpool.Pool
}

func NewBookingRepository(db *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{db: db}
}

func scanBooking(row rowScanner) (booking.Booking, error) {
	var b booking.Booking
	err := row.Scan(
		&b.ID,
		&b.TenantID,
		&b.ResourceID,
		&b.UserID,
		&b.ClientID,
		&b.StartTime,
		&b.EndTime,
		&b.Status,
		&b.Notes,
		&b.RecurringEnabled,
		&b.RecurringPattern,
		&b.RecurrenceGroupID,
		&b.ConfirmationCode,
		&b.CancelledAt,
		&b.CancelledBy,
		&b.CancellationReason,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	return b, err
}

// inSerializableTx runs fn at serializable isolation, retrying a
// bounded number of times when two admissions collide.
func (r *BookingRepository) inSerializableTx(ctx context.Context, fn func(pgx.Tx) error) error {
	opts := pgx.TxOptions{IsoLevel: pgx.Serializable}
	var err error
	for attempt := 0; attempt < serializationAttempts; attempt++ {
		err = pgx.BeginTxFunc(ctx, r.db, opts, fn)
		if err == nil || !isSerializationFailure(err) {
			return err
		}
	}
	return err
}

// conflictProbe lists active bookings overlapping [start, end) on the
// resource. Half-open semantics: back-to-back bookings never conflict.
func conflictProbe(ctx context.Context, q querier, tenantID, resourceID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) ([]booking.Conflict, error) {
	query := `
		SELECT id, start_time, end_time FROM bookings
		WHERE tenant_id = $1 AND resource_id = $2
		  AND status IN ('pendente', 'confirmado')
		  AND start_time < $4 AND end_time > $3`
	args := []any{tenantID, resourceID, start, end}
	if excludeID != nil {
		args = append(args, *excludeID)
		query += fmt.Sprintf(" AND id != $%d", len(args))
	}
	query += " ORDER BY start_time"

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("probe conflicts: %w", err)
	}
	defer rows.Close()

	var conflicts []booking.Conflict
	for rows.Next() {
		var c booking.Conflict
		if err := rows.Scan(&c.BookingID, &c.StartTime, &c.EndTime); err != nil {
			return nil, fmt.Errorf("scan conflict: %w", err)
		}
		conflicts = append(conflicts, c)
	}
	return conflicts, rows.Err()
}

func insertBooking(ctx context.Context, q querier, b booking.Booking) error {
	_, err := q.Exec(ctx, `
		INSERT INTO bookings (id, tenant_id, resource_id, user_id, client_id,
			start_time, end_time, status, notes, recurring_enabled, recurring_pattern,
			recurrence_group_id, confirmation_code, cancelled_at, cancelled_by,
			cancellation_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		b.ID, b.TenantID, b.ResourceID, b.UserID, b.ClientID,
		b.StartTime, b.EndTime, b.Status, b.Notes, b.RecurringEnabled, b.RecurringPattern,
		b.RecurrenceGroupID, b.ConfirmationCode, b.CancelledAt, b.CancelledBy,
		b.CancellationReason, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

// CreateBatch admits one booking or a whole recurrence group. The
// conflict probe, every insert, and the staged events commit in one
// serializable transaction; a non-empty conflict list means nothing
// was written.
func (r *BookingRepository) CreateBatch(ctx context.Context, bs []booking.Booking, stream string, envs []event.Envelope) ([]booking.Conflict, error) {
	var conflicts []booking.Conflict
	err := r.inSerializableTx(ctx, func(tx pgx.Tx) error {
		conflicts = conflicts[:0]
		for _, b := range bs {
			found, err := conflictProbe(ctx, tx, b.TenantID, b.ResourceID, b.StartTime, b.EndTime, nil)
			if err != nil {
				return err
			}
			conflicts = append(conflicts, found...)
		}
		if len(conflicts) > 0 {
			return errAdmissionConflict
		}
		for _, b := range bs {
			if err := insertBooking(ctx, tx, b); err != nil {
				return err
			}
		}
		for _, env := range envs {
			if err := enqueueEvent(ctx, tx, stream, env); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, errAdmissionConflict) {
		return conflicts, nil
	}
	if err != nil {
		return nil, err
	}
	return nil, nil
}

// UpdateAdmitted rewrites a booking whose interval or resource moved,
// re-probing conflicts with the row itself excluded.
func (r *BookingRepository) UpdateAdmitted(ctx context.Context, b booking.Booking, stream string, envs []event.Envelope) ([]booking.Conflict, error) {
	var conflicts []booking.Conflict
	err := r.inSerializableTx(ctx, func(tx pgx.Tx) error {
		found, err := conflictProbe(ctx, tx, b.TenantID, b.ResourceID, b.StartTime, b.EndTime, &b.ID)
		if err != nil {
			return err
		}
		conflicts = found
		if len(conflicts) > 0 {
			return errAdmissionConflict
		}
		if err := updateBooking(ctx, tx, b); err != nil {
			return err
		}
		for _, env := range envs {
			if err := enqueueEvent(ctx, tx, stream, env); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, errAdmissionConflict) {
		return conflicts, nil
	}
	if err != nil {
		return nil, err
	}
	return nil, nil
}

func updateBooking(ctx context.Context, q querier, b booking.Booking) error {
	tag, err := q.Exec(ctx, `
		UPDATE bookings
		SET resource_id = $2, client_id = $3, start_time = $4, end_time = $5,
			status = $6, notes = $7, cancelled_at = $8, cancelled_by = $9,
			cancellation_reason = $10, updated_at = $11
		WHERE id = $1`,
		b.ID, b.ResourceID, b.ClientID, b.StartTime, b.EndTime,
		b.Status, b.Notes, b.CancelledAt, b.CancelledBy,
		b.CancellationReason, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Update persists changes that need no re-admission (notes, status,
// cancellation fields) together with their events.
func (r *BookingRepository) Update(ctx context.Context, b booking.Booking, stream string, envs []event.Envelope) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if err := updateBooking(ctx, tx, b); err != nil {
			return err
		}
		for _, env := range envs {
			if err := enqueueEvent(ctx, tx, stream, env); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *BookingRepository) GetByID(ctx context.Context, id uuid.UUID) (booking.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return booking.Booking{}, ErrNotFound
	}
	if err != nil {
		return booking.Booking{}, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

type BookingFilter struct {
	TenantID   uuid.UUID
	ResourceID *uuid.UUID
	UserID     *uuid.UUID
	Status     *booking.Status
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

func (r *BookingRepository) List(ctx context.Context, f BookingFilter) ([]booking.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE tenant_id = $1`
	args := []any{f.TenantID}

	if f.ResourceID != nil {
		args = append(args, *f.ResourceID)
		query += fmt.Sprintf(" AND resource_id = $%d", len(args))
	}
	if f.UserID != nil {
		args = append(args, *f.UserID)
		query += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		query += fmt.Sprintf(" AND end_time > $%d", len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		query += fmt.Sprintf(" AND start_time < $%d", len(args))
	}
	query += " ORDER BY start_time"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []booking.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// ListActiveInWindow feeds the availability projection: active
// bookings of one resource overlapping [from, to).
func (r *BookingRepository) ListActiveInWindow(ctx context.Context, tenantID, resourceID uuid.UUID, from, to time.Time) ([]booking.Booking, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE tenant_id = $1 AND resource_id = $2
		  AND status IN ('pendente', 'confirmado')
		  AND start_time < $4 AND end_time > $3
		ORDER BY start_time`,
		tenantID, resourceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list window bookings: %w", err)
	}
	defer rows.Close()

	var bookings []booking.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// CancelActiveByResource is the resource.deleted cascade.
func (r *BookingRepository) CancelActiveByResource(ctx context.Context, resourceID uuid.UUID, reason string, stream string, makeEnvs func(booking.Booking) ([]event.Envelope, error)) (int, error) {
	return r.cancelActiveWhere(ctx, "resource_id", resourceID, reason, stream, makeEnvs)
}

// CancelActiveByUser is the user.deleted cascade.
func (r *BookingRepository) CancelActiveByUser(ctx context.Context, userID uuid.UUID, reason string, stream string, makeEnvs func(booking.Booking) ([]event.Envelope, error)) (int, error) {
	return r.cancelActiveWhere(ctx, "user_id", userID, reason, stream, makeEnvs)
}

func (r *BookingRepository) cancelActiveWhere(ctx context.Context, column string, id uuid.UUID, reason string, stream string, makeEnvs func(booking.Booking) ([]event.Envelope, error)) (int, error) {
	now := time.Now().UTC()
	cancelled := 0
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		cancelled = 0
		rows, err := tx.Query(ctx, `
			UPDATE bookings
			SET status = 'cancelado', cancelled_at = $2, cancellation_reason = $3,
				updated_at = $2
			WHERE `+column+` = $1 AND status IN ('pendente', 'confirmado')
			RETURNING `+bookingColumns, id, now, reason)
		if err != nil {
			return fmt.Errorf("cancel bookings: %w", err)
		}
		rowsCancelled, err := collectBookings(rows)
		if err != nil {
			return err
		}
		for _, b := range rowsCancelled {
			envs, err := makeEnvs(b)
			if err != nil {
				return err
			}
			for _, env := range envs {
				if err := enqueueEvent(ctx, tx, stream, env); err != nil {
					return err
				}
			}
		}
		cancelled = len(rowsCancelled)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return cancelled, nil
}

func collectBookings(rows pgx.Rows) ([]booking.Booking, error) {
	defer rows.Close()
	var bookings []booking.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// DeleteByTenant is the tenant.deleted cascade; per-row events are
// deliberately not emitted.
func (r *BookingRepository) DeleteByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM bookings WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return 0, fmt.Errorf("delete tenant bookings: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Delete hard-removes one booking. Administrative; emits nothing.
func (r *BookingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
