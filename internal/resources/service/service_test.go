package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booking-system/internal/auth"
	"booking-system/internal/domain/event"
	"booking-system/internal/domain/resource"
	"booking-system/internal/domain/user"
)

func seedCategory(env *testEnv, tenantID uuid.UUID) resource.Category {
	c := resource.NewCategory(resource.CategoryCreateRequest{
		TenantID: tenantID,
		Name:     "Salas",
		Type:     resource.CategoryFisico,
	})
	env.categories.categories[c.ID] = c
	return c
}

func TestWriteRequiresManagePermission(t *testing.T) {
	tenantID := uuid.New()
	env := newTestEnv(saoPauloSettings(), time.Now())
	ctx := context.Background()

	plain := auth.Claims{UserID: uuid.New(), TenantID: tenantID, UserType: "user"}
	env.permissions.users[plain.UserID] = user.User{ID: plain.UserID, TenantID: tenantID}

	_, err := env.svc.CreateCategory(ctx, plain, resource.CategoryCreateRequest{
		TenantID: tenantID, Name: "Salas", Type: resource.CategoryFisico,
	})
	assert.ErrorIs(t, err, ErrForbidden)

	granted := auth.Claims{UserID: uuid.New(), TenantID: tenantID, UserType: "user"}
	env.permissions.users[granted.UserID] = user.User{
		ID: granted.UserID, TenantID: tenantID,
		Permissions: user.Permissions{CanManageResources: true},
	}
	_, err = env.svc.CreateCategory(ctx, granted, resource.CategoryCreateRequest{
		TenantID: tenantID, Name: "Salas", Type: resource.CategoryFisico,
	})
	assert.NoError(t, err)

	// Admins pass on claims alone, no lookup.
	calls := env.permissions.calls
	admin := auth.Claims{UserID: uuid.New(), TenantID: tenantID, UserType: "admin"}
	_, err = env.svc.CreateCategory(ctx, admin, resource.CategoryCreateRequest{
		TenantID: tenantID, Name: "Equipamentos", Type: resource.CategoryFisico,
	})
	assert.NoError(t, err)
	assert.Equal(t, calls, env.permissions.calls)
}

func TestCreateCategoryValidation(t *testing.T) {
	tenantID := uuid.New()
	env := newTestEnv(saoPauloSettings(), time.Now())
	admin := auth.Claims{UserID: uuid.New(), TenantID: tenantID, UserType: "admin"}
	ctx := context.Background()

	var verr *ValidationError
	_, err := env.svc.CreateCategory(ctx, admin, resource.CategoryCreateRequest{
		TenantID: tenantID, Type: resource.CategoryFisico,
	})
	assert.ErrorAs(t, err, &verr)

	_, err = env.svc.CreateCategory(ctx, admin, resource.CategoryCreateRequest{
		TenantID: tenantID, Name: "Salas", Type: "veiculo",
	})
	assert.ErrorAs(t, err, &verr)

	_, err = env.svc.CreateCategory(ctx, admin, resource.CategoryCreateRequest{
		TenantID: uuid.New(), Name: "Salas", Type: resource.CategoryFisico,
	})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestDeleteCategoryInUse(t *testing.T) {
	tenantID := uuid.New()
	env := newTestEnv(saoPauloSettings(), time.Now())
	admin := auth.Claims{UserID: uuid.New(), TenantID: tenantID, UserType: "admin"}
	c := seedCategory(env, tenantID)
	env.categories.inUse[c.ID] = true

	err := env.svc.DeleteCategory(context.Background(), admin, c.ID)
	assert.ErrorIs(t, err, ErrCategoryInUse)

	env.categories.inUse[c.ID] = false
	assert.NoError(t, env.svc.DeleteCategory(context.Background(), admin, c.ID))
}

func TestCreateResourceValidation(t *testing.T) {
	tenantID := uuid.New()
	env := newTestEnv(saoPauloSettings(), time.Now())
	admin := auth.Claims{UserID: uuid.New(), TenantID: tenantID, UserType: "admin"}
	c := seedCategory(env, tenantID)
	ctx := context.Background()

	var verr *ValidationError
	_, err := env.svc.CreateResource(ctx, admin, resource.CreateRequest{
		TenantID: tenantID, CategoryID: c.ID, Name: "Sala 1",
		Schedule: resource.WeeklySchedule{"someday": {mustRange(t, "08:00-12:00")}},
	})
	assert.ErrorAs(t, err, &verr)

	_, err = env.svc.CreateResource(ctx, admin, resource.CreateRequest{
		TenantID: tenantID, CategoryID: uuid.New(), Name: "Sala 1",
	})
	assert.ErrorIs(t, err, ErrCategoryNotFound)

	created, err := env.svc.CreateResource(ctx, admin, resource.CreateRequest{
		TenantID: tenantID, CategoryID: c.ID, Name: "Sala 1",
		Schedule: resource.WeeklySchedule{"monday": {mustRange(t, "08:00-12:00")}},
	})
	require.NoError(t, err)
	assert.Equal(t, resource.StatusDisponivel, created.Status)
}

func TestUpdateResourceRejectsForeignCategory(t *testing.T) {
	tenantID := uuid.New()
	env := newTestEnv(saoPauloSettings(), time.Now())
	admin := auth.Claims{UserID: uuid.New(), TenantID: tenantID, UserType: "admin"}
	res := seedResource(env, tenantID, nil)
	foreign := seedCategory(env, uuid.New())

	_, err := env.svc.UpdateResource(context.Background(), admin, res.ID, resource.UpdateRequest{
		CategoryID: &foreign.ID,
	})
	assert.ErrorIs(t, err, ErrCategoryNotFound)
}

func TestDeleteResourceStagesEvent(t *testing.T) {
	tenantID := uuid.New()
	env := newTestEnv(saoPauloSettings(), time.Now())
	admin := auth.Claims{UserID: uuid.New(), TenantID: tenantID, UserType: "admin"}
	res := seedResource(env, tenantID, nil)

	require.NoError(t, env.svc.DeleteResource(context.Background(), admin, res.ID))

	assert.Equal(t, "deletion-events", env.resources.deletedStream)
	assert.Equal(t, event.ResourceDeleted, env.resources.deletedEnv.Type)
	var payload event.ResourceDeletedPayload
	require.NoError(t, env.resources.deletedEnv.Decode(&payload))
	assert.Equal(t, res.ID, payload.ResourceID)
	assert.Equal(t, tenantID, payload.TenantID)
}

func TestTenantDeletedCascadeRemovesResourcesAndCategories(t *testing.T) {
	tenantID := uuid.New()
	env := newTestEnv(saoPauloSettings(), time.Now())
	seedCategory(env, tenantID)
	seedResource(env, tenantID, nil)
	surviving := seedResource(env, uuid.New(), nil)

	cascade, err := event.New(event.TenantDeleted, tenantID, event.TenantDeletedPayload{TenantID: tenantID})
	require.NoError(t, err)

	require.NoError(t, env.svc.HandleDeletionEvent(context.Background(), cascade))
	assert.Empty(t, env.categories.categories)
	assert.Len(t, env.resources.resources, 1)
	_, ok := env.resources.resources[surviving.ID]
	assert.True(t, ok)
}

func TestBookingEventToleratesUnknownPayloads(t *testing.T) {
	env := newTestEnv(saoPauloSettings(), time.Now())

	assert.NoError(t, env.svc.HandleBookingEvent(context.Background(), event.Envelope{
		Type:    event.BookingCreated,
		Payload: []byte(`{"resource_id":"not-a-uuid"`),
	}))
	assert.NoError(t, env.svc.HandleBookingEvent(context.Background(), event.Envelope{
		Type:    event.BookingUpdated,
		Payload: []byte(`{}`),
	}))
}
