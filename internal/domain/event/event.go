// Package event defines the envelope and payloads carried by the
// Redis streams that connect the services. Two logical streams exist:
// booking-events for lifecycle notifications and deletion-events for
// cascades. Consumers must stay idempotent; the fabric delivers
// at-least-once.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Version stamped into every envelope's metadata.
const Version = "1"

// Booking lifecycle kinds, published on the booking stream.
const (
	BookingCreated       = "booking.created"
	BookingUpdated       = "booking.updated"
	BookingCancelled     = "booking.cancelled"
	BookingStatusChanged = "booking.status_changed"
)

// Cascade kinds, published on the deletion stream.
const (
	ResourceDeleted = "resource.deleted"
	UserDeleted     = "user.deleted"
	TenantDeleted   = "tenant.deleted"
)

type Metadata struct {
	TenantID     uuid.UUID `json:"tenant_id"`
	EmittedAt    time.Time `json:"emitted_at"`
	EventVersion string    `json:"event_version"`
}

// Envelope is the unit written to and read from a stream. On the wire
// it is three flat fields; payload and metadata travel as JSON
// strings.
type Envelope struct {
	Type     string          `json:"event_type"`
	Payload  json.RawMessage `json:"payload"`
	Metadata Metadata        `json:"metadata"`
}

// New wraps payload into an envelope stamped with the current time.
func New(kind string, tenantID uuid.UUID, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return Envelope{
		Type:    kind,
		Payload: raw,
		Metadata: Metadata{
			TenantID:     tenantID,
			EmittedAt:    time.Now().UTC(),
			EventVersion: Version,
		},
	}, nil
}

// Decode unmarshals the payload into dest.
func (e Envelope) Decode(dest any) error {
	if err := json.Unmarshal(e.Payload, dest); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// Values renders the envelope as stream entry fields.
func (e Envelope) Values() (map[string]any, error) {
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return map[string]any{
		"event_type": e.Type,
		"payload":    string(e.Payload),
		"metadata":   string(meta),
	}, nil
}

// FromValues parses the fields of a stream entry back into an
// envelope.
func FromValues(values map[string]any) (Envelope, error) {
	kind, ok := values["event_type"].(string)
	if !ok || kind == "" {
		return Envelope{}, fmt.Errorf("entry has no event_type")
	}
	env := Envelope{Type: kind}

	if raw, ok := values["payload"].(string); ok && raw != "" {
		env.Payload = json.RawMessage(raw)
	} else {
		env.Payload = json.RawMessage("{}")
	}
	if raw, ok := values["metadata"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &env.Metadata); err != nil {
			return Envelope{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return env, nil
}

type BookingCreatedPayload struct {
	BookingID  uuid.UUID `json:"booking_id"`
	TenantID   uuid.UUID `json:"tenant_id"`
	ResourceID uuid.UUID `json:"resource_id"`
	UserID     uuid.UUID `json:"user_id"`
	Status     string    `json:"status"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
}

type BookingUpdatedPayload struct {
	BookingID  uuid.UUID `json:"booking_id"`
	ResourceID uuid.UUID `json:"resource_id"`
	Changes    []string  `json:"changes"`
}

type BookingCancelledPayload struct {
	BookingID   uuid.UUID  `json:"booking_id"`
	ResourceID  uuid.UUID  `json:"resource_id"`
	CancelledBy *uuid.UUID `json:"cancelled_by,omitempty"`
	Reason      string     `json:"reason"`
}

type BookingStatusChangedPayload struct {
	BookingID  uuid.UUID `json:"booking_id"`
	ResourceID uuid.UUID `json:"resource_id"`
	Status     string    `json:"status"`
}

type ResourceDeletedPayload struct {
	ResourceID uuid.UUID `json:"resource_id"`
	TenantID   uuid.UUID `json:"tenant_id"`
}

type UserDeletedPayload struct {
	UserID   uuid.UUID `json:"user_id"`
	TenantID uuid.UUID `json:"tenant_id"`
}

type TenantDeletedPayload struct {
	TenantID uuid.UUID `json:"tenant_id"`
}
