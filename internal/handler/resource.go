package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"booking-system/internal/auth"
	"booking-system/internal/domain/resource"
	"booking-system/internal/repository/postgres"
	resources "booking-system/internal/resources/service"
)

// Categories routes the category catalog. Everything requires a
// token; writes additionally require can_manage_resources, enforced
// by the service.
type Categories struct {
	svc  *resources.Service
	auth *auth.Manager
	log  *zap.Logger
}

func NewCategories(svc *resources.Service, manager *auth.Manager, logger *zap.Logger) Categories {
	return Categories{svc: svc, auth: manager, log: logger}
}

func (h Categories) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(h.auth.Middleware)

	router.Post("/", h.create)
	router.Get("/", h.list)
	router.Route("/{id}", func(router chi.Router) {
		router.Get("/", h.get)
		router.Put("/", h.update)
		router.Delete("/", h.delete)
	})

	return router
}

func (h Categories) create(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	var req resource.CategoryCreateRequest
	if err := decode(r, &req); err != nil {
		detail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TenantID == uuid.Nil {
		req.TenantID = claims.TenantID
	}

	created, err := h.svc.CreateCategory(r.Context(), claims, req)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respond(w, r, http.StatusCreated, created)
}

func (h Categories) list(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}

	f := postgres.CategoryFilter{
		TenantID: claims.TenantID,
		IsActive: queryBool(r, "is_active"),
		Limit:    queryInt(r, "limit", 50),
		Offset:   queryInt(r, "offset", 0),
	}
	if v := queryString(r, "category_type"); v != nil {
		t := resource.CategoryType(*v)
		f.Type = &t
	}

	found, err := h.svc.ListCategories(r.Context(), claims, f)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	render.JSON(w, r, found)
}

func (h Categories) get(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		detail(w, r, http.StatusBadRequest, "invalid category id")
		return
	}

	found, err := h.svc.GetCategory(r.Context(), claims, id)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	render.JSON(w, r, found)
}

func (h Categories) update(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		detail(w, r, http.StatusBadRequest, "invalid category id")
		return
	}
	var req resource.CategoryUpdateRequest
	if err := decode(r, &req); err != nil {
		detail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.svc.UpdateCategory(r.Context(), claims, id, req)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	render.JSON(w, r, updated)
}

func (h Categories) delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		detail(w, r, http.StatusBadRequest, "invalid category id")
		return
	}

	if err := h.svc.DeleteCategory(r.Context(), claims, id); err != nil {
		respondError(w, r, h.log, err)
		return
	}
	render.NoContent(w, r)
}

// Resources routes the bookable inventory, including the availability
// projection the booking widgets poll.
type Resources struct {
	svc  *resources.Service
	auth *auth.Manager
	log  *zap.Logger
}

func NewResources(svc *resources.Service, manager *auth.Manager, logger *zap.Logger) Resources {
	return Resources{svc: svc, auth: manager, log: logger}
}

func (h Resources) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(h.auth.Middleware)

	router.Post("/", h.create)
	router.Get("/", h.list)
	router.Route("/{id}", func(router chi.Router) {
		router.Get("/", h.get)
		router.Put("/", h.update)
		router.Delete("/", h.delete)
		router.Get("/availability", h.availability)
	})

	return router
}

func (h Resources) create(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	var req resource.CreateRequest
	if err := decode(r, &req); err != nil {
		detail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TenantID == uuid.Nil {
		req.TenantID = claims.TenantID
	}

	created, err := h.svc.CreateResource(r.Context(), claims, req)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respond(w, r, http.StatusCreated, created)
}

func (h Resources) list(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}

	f := postgres.ResourceFilter{
		TenantID: claims.TenantID,
		Limit:    queryInt(r, "limit", 50),
		Offset:   queryInt(r, "offset", 0),
	}
	if categoryID, err := queryUUID(r, "category_id"); err != nil {
		detail(w, r, http.StatusBadRequest, "invalid category_id")
		return
	} else if categoryID != nil {
		f.CategoryID = categoryID
	}
	if v := queryString(r, "status"); v != nil {
		st := resource.Status(*v)
		f.Status = &st
	}

	found, err := h.svc.ListResources(r.Context(), claims, f)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	render.JSON(w, r, found)
}

func (h Resources) get(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		detail(w, r, http.StatusBadRequest, "invalid resource id")
		return
	}

	found, err := h.svc.GetResource(r.Context(), claims, id)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	render.JSON(w, r, found)
}

func (h Resources) update(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		detail(w, r, http.StatusBadRequest, "invalid resource id")
		return
	}
	var req resource.UpdateRequest
	if err := decode(r, &req); err != nil {
		detail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.svc.UpdateResource(r.Context(), claims, id, req)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	render.JSON(w, r, updated)
}

func (h Resources) delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		detail(w, r, http.StatusBadRequest, "invalid resource id")
		return
	}

	if err := h.svc.DeleteResource(r.Context(), claims, id); err != nil {
		respondError(w, r, h.log, err)
		return
	}
	render.NoContent(w, r)
}

// availability serves the slot projection for one date, passed as
// ?data=YYYY-MM-DD.
func (h Resources) availability(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		detail(w, r, http.StatusBadRequest, "invalid resource id")
		return
	}

	projection, err := h.svc.Availability(r.Context(), claims, id, r.URL.Query().Get("data"))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	render.JSON(w, r, projection)
}
