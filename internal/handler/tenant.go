package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"booking-system/internal/auth"
	"booking-system/internal/domain/tenant"
	"booking-system/internal/repository/postgres"
	tenants "booking-system/internal/tenants/service"
)

// Tenants routes the tenant surface: registration and domain lookup
// are public (the white-label frontend resolves its tenant before
// anyone logs in), everything else requires a token.
type Tenants struct {
	svc  *tenants.Service
	auth *auth.Manager
	log  *zap.Logger
}

func NewTenants(svc *tenants.Service, manager *auth.Manager, logger *zap.Logger) Tenants {
	return Tenants{svc: svc, auth: manager, log: logger}
}

func (h Tenants) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/", h.create)
	router.Get("/domain/{domain}", h.getByDomain)

	router.Group(func(router chi.Router) {
		router.Use(h.auth.Middleware)

		router.Get("/", h.list)
		router.Route("/{id}", func(router chi.Router) {
			router.Get("/", h.get)
			router.Put("/", h.update)
			router.Delete("/", h.delete)
			router.Get("/settings", h.getSettings)
			router.Put("/settings", h.updateSettings)

			router.Route("/webhooks", func(router chi.Router) {
				router.Post("/", h.createWebhook)
				router.Get("/", h.listWebhooks)
				router.Get("/{webhookID}", h.getWebhook)
				router.Put("/{webhookID}", h.updateWebhook)
				router.Delete("/{webhookID}", h.deleteWebhook)
			})
		})
	})

	return router
}

func (h Tenants) create(w http.ResponseWriter, r *http.Request) {
	var req tenant.CreateRequest
	if err := decode(r, &req); err != nil {
		detail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.svc.Create(r.Context(), req)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respond(w, r, http.StatusCreated, created)
}

func (h Tenants) getByDomain(w http.ResponseWriter, r *http.Request) {
	found, err := h.svc.GetByDomain(r.Context(), chi.URLParam(r, "domain"))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	render.JSON(w, r, found)
}

func (h Tenants) list(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}

	f := postgres.TenantFilter{
		IsActive: queryBool(r, "is_active"),
		Limit:    queryInt(r, "limit", 50),
		Offset:   queryInt(r, "offset", 0),
	}
	found, err := h.svc.List(r.Context(), claims, f)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	render.JSON(w, r, found)
}

func (h Tenants) get(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		detail(w, r, http.StatusBadRequest, "invalid tenant id")
		return
	}

	found, err := h.svc.Get(r.Context(), claims, id)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	render.JSON(w, r, found)
}

func (h Tenants) update(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		detail(w, r, http.StatusBadRequest, "invalid tenant id")
		return
	}
	var req tenant.UpdateRequest
	if err := decode(r, &req); err != nil {
		detail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.svc.Update(r.Context(), claims, id, req)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	render.JSON(w, r, updated)
}

func (h Tenants) delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		detail(w, r, http.StatusBadRequest, "invalid tenant id")
		return
	}

	if err := h.svc.Delete(r.Context(), claims, id); err != nil {
		respondError(w, r, h.log, err)
		return
	}
	render.NoContent(w, r)
}

func (h Tenants) getSettings(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		detail(w, r, http.StatusBadRequest, "invalid tenant id")
		return
	}

	settings, err := h.svc.GetSettings(r.Context(), claims, id)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	render.JSON(w, r, settings)
}

func (h Tenants) updateSettings(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		detail(w, r, http.StatusBadRequest, "invalid tenant id")
		return
	}
	var settings tenant.Settings
	if err := decode(r, &settings); err != nil {
		detail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.svc.UpdateSettings(r.Context(), claims, id, settings)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	render.JSON(w, r, updated)
}

func (h Tenants) createWebhook(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	tenantID, err := pathUUID(r, "id")
	if err != nil {
		detail(w, r, http.StatusBadRequest, "invalid tenant id")
		return
	}
	var req tenant.WebhookCreateRequest
	if err := decode(r, &req); err != nil {
		detail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.svc.CreateWebhook(r.Context(), claims, tenantID, req)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respond(w, r, http.StatusCreated, created)
}

func (h Tenants) listWebhooks(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	tenantID, err := pathUUID(r, "id")
	if err != nil {
		detail(w, r, http.StatusBadRequest, "invalid tenant id")
		return
	}

	found, err := h.svc.ListWebhooks(r.Context(), claims, tenantID)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	render.JSON(w, r, found)
}

func (h Tenants) getWebhook(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	tenantID, err := pathUUID(r, "id")
	if err != nil {
		detail(w, r, http.StatusBadRequest, "invalid tenant id")
		return
	}
	webhookID, err := pathUUID(r, "webhookID")
	if err != nil {
		detail(w, r, http.StatusBadRequest, "invalid webhook id")
		return
	}

	found, err := h.svc.GetWebhook(r.Context(), claims, tenantID, webhookID)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	render.JSON(w, r, found)
}

func (h Tenants) updateWebhook(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	tenantID, err := pathUUID(r, "id")
	if err != nil {
		detail(w, r, http.StatusBadRequest, "invalid tenant id")
		return
	}
	webhookID, err := pathUUID(r, "webhookID")
	if err != nil {
		detail(w, r, http.StatusBadRequest, "invalid webhook id")
		return
	}
	var req tenant.WebhookUpdateRequest
	if err := decode(r, &req); err != nil {
		detail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.svc.UpdateWebhook(r.Context(), claims, tenantID, webhookID, req)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	render.JSON(w, r, updated)
}

func (h Tenants) deleteWebhook(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	tenantID, err := pathUUID(r, "id")
	if err != nil {
		detail(w, r, http.StatusBadRequest, "invalid tenant id")
		return
	}
	webhookID, err := pathUUID(r, "webhookID")
	if err != nil {
		detail(w, r, http.StatusBadRequest, "invalid webhook id")
		return
	}

	if err := h.svc.DeleteWebhook(r.Context(), claims, tenantID, webhookID); err != nil {
		respondError(w, r, h.log, err)
		return
	}
	render.NoContent(w, r)
}
