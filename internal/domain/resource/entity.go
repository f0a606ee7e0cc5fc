// Package resource contains bookable resources, their grouping
// categories, and the weekly availability schedule a resource opens
// for.
package resource

import (
	"time"

	"github.com/google/uuid"
)

// Status of a resource.
//
// Only disponivel resources accept bookings or project availability.
// manutencao and indisponivel are administrative states an admin can
// freely toggle.
type Status string

const (
	StatusDisponivel   Status = "disponivel"
	StatusManutencao   Status = "manutencao"
	StatusIndisponivel Status = "indisponivel"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDisponivel, StatusManutencao, StatusIndisponivel:
		return true
	}
	return false
}

// Resource is a bookable unit (room, person, equipment) opened to
// bookings by its weekly schedule, within its tenant's working hours.
type Resource struct {
	ID          uuid.UUID      `db:"id" json:"id"`
	TenantID    uuid.UUID      `db:"tenant_id" json:"tenant_id"`
	CategoryID  uuid.UUID      `db:"category_id" json:"category_id"`
	Name        string         `db:"name" json:"name"`
	Description *string        `db:"description" json:"description,omitempty"`
	Status      Status         `db:"status" json:"status"`
	Capacity    *int           `db:"capacity" json:"capacity,omitempty"`
	Location    *string        `db:"location" json:"location,omitempty"`
	Attributes  Attributes     `db:"attributes" json:"attributes,omitempty"`
	Schedule    WeeklySchedule `db:"availability_schedule" json:"availability_schedule"`
	ImageURL    *string        `db:"image_url" json:"image_url,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

type CreateRequest struct {
	TenantID    uuid.UUID      `json:"tenant_id"`
	CategoryID  uuid.UUID      `json:"category_id"`
	Name        string         `json:"name"`
	Description *string        `json:"description"`
	Status      Status         `json:"status"`
	Capacity    *int           `json:"capacity"`
	Location    *string        `json:"location"`
	Attributes  Attributes     `json:"attributes"`
	Schedule    WeeklySchedule `json:"availability_schedule"`
	ImageURL    *string        `json:"image_url"`
}

type UpdateRequest struct {
	CategoryID  *uuid.UUID      `json:"category_id"`
	Name        *string         `json:"name"`
	Description *string         `json:"description"`
	Status      *Status         `json:"status"`
	Capacity    *int            `json:"capacity"`
	Location    *string         `json:"location"`
	Attributes  Attributes      `json:"attributes"`
	Schedule    *WeeklySchedule `json:"availability_schedule"`
	ImageURL    *string         `json:"image_url"`
}

// New builds a resource. An omitted status means disponivel.
func New(req CreateRequest) Resource {
	now := time.Now().UTC()
	status := req.Status
	if status == "" {
		status = StatusDisponivel
	}
	return Resource{
		ID:          uuid.New(),
		TenantID:    req.TenantID,
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Description: req.Description,
		Status:      status,
		Capacity:    req.Capacity,
		Location:    req.Location,
		Attributes:  req.Attributes,
		Schedule:    req.Schedule,
		ImageURL:    req.ImageURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (r *Resource) Apply(req UpdateRequest) {
	if req.CategoryID != nil {
		r.CategoryID = *req.CategoryID
	}
	if req.Name != nil {
		r.Name = *req.Name
	}
	if req.Description != nil {
		r.Description = req.Description
	}
	if req.Status != nil {
		r.Status = *req.Status
	}
	if req.Capacity != nil {
		r.Capacity = req.Capacity
	}
	if req.Location != nil {
		r.Location = req.Location
	}
	if req.Attributes != nil {
		r.Attributes = req.Attributes
	}
	if req.Schedule != nil {
		r.Schedule = *req.Schedule
	}
	if req.ImageURL != nil {
		r.ImageURL = req.ImageURL
	}
	r.UpdatedAt = time.Now().UTC()
}

// IsBookable reports whether admission and availability should
// consider the resource at all.
func (r Resource) IsBookable() bool {
	return r.Status == StatusDisponivel
}
