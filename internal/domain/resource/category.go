package resource

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CategoryType is the coarse classification of what a category groups.
type CategoryType string

const (
	CategoryFisico   CategoryType = "fisico"
	CategoryHumano   CategoryType = "humano"
	CategorySoftware CategoryType = "software"
)

func (t CategoryType) Valid() bool {
	switch t {
	case CategoryFisico, CategoryHumano, CategorySoftware:
		return true
	}
	return false
}

// Attributes is an open JSON bag stored as JSONB.
type Attributes map[string]any

func (a *Attributes) Scan(value any) error {
	if value == nil {
		*a = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Attributes", value)
	}
	return json.Unmarshal(data, a)
}

func (a Attributes) Value() (driver.Value, error) {
	if a == nil {
		return json.Marshal(map[string]any{})
	}
	return json.Marshal(map[string]any(a))
}

// Category groups resources of one kind. Deleting a category with
// resources still attached is refused by the store.
type Category struct {
	ID          uuid.UUID    `db:"id" json:"id"`
	TenantID    uuid.UUID    `db:"tenant_id" json:"tenant_id"`
	Name        string       `db:"name" json:"name"`
	Description *string      `db:"description" json:"description,omitempty"`
	Type        CategoryType `db:"type" json:"type"`
	Icon        *string      `db:"icon" json:"icon,omitempty"`
	Color       *string      `db:"color" json:"color,omitempty"`
	IsActive    bool         `db:"is_active" json:"is_active"`
	Metadata    Attributes   `db:"metadata" json:"category_metadata,omitempty"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}

type CategoryCreateRequest struct {
	TenantID    uuid.UUID    `json:"tenant_id"`
	Name        string       `json:"name"`
	Description *string      `json:"description"`
	Type        CategoryType `json:"type"`
	Icon        *string      `json:"icon"`
	Color       *string      `json:"color"`
	Metadata    Attributes   `json:"category_metadata"`
}

type CategoryUpdateRequest struct {
	Name        *string       `json:"name"`
	Description *string       `json:"description"`
	Type        *CategoryType `json:"type"`
	Icon        *string       `json:"icon"`
	Color       *string       `json:"color"`
	IsActive    *bool         `json:"is_active"`
	Metadata    Attributes    `json:"category_metadata"`
}

func NewCategory(req CategoryCreateRequest) Category {
	now := time.Now().UTC()
	return Category{
		ID:          uuid.New(),
		TenantID:    req.TenantID,
		Name:        req.Name,
		Description: req.Description,
		Type:        req.Type,
		Icon:        req.Icon,
		Color:       req.Color,
		IsActive:    true,
		Metadata:    req.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (c *Category) Apply(req CategoryUpdateRequest) {
	if req.Name != nil {
		c.Name = *req.Name
	}
	if req.Description != nil {
		c.Description = req.Description
	}
	if req.Type != nil {
		c.Type = *req.Type
	}
	if req.Icon != nil {
		c.Icon = req.Icon
	}
	if req.Color != nil {
		c.Color = req.Color
	}
	if req.IsActive != nil {
		c.IsActive = *req.IsActive
	}
	if req.Metadata != nil {
		c.Metadata = req.Metadata
	}
	c.UpdatedAt = time.Now().UTC()
}
