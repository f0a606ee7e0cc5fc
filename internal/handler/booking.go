package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"booking-system/internal/auth"
	bookings "booking-system/internal/bookings/service"
	"booking-system/internal/domain/booking"
	"booking-system/internal/repository/postgres"
)

// Bookings routes the admission engine and the booking lifecycle.
type Bookings struct {
	svc  *bookings.Service
	auth *auth.Manager
	log  *zap.Logger
}

func NewBookings(svc *bookings.Service, manager *auth.Manager, logger *zap.Logger) Bookings {
	return Bookings{svc: svc, auth: manager, log: logger}
}

func (h Bookings) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(h.auth.Middleware)

	router.Post("/", h.create)
	router.Get("/", h.list)
	router.Get("/resource/{resourceID}/window", h.resourceWindow)
	router.Route("/{id}", func(router chi.Router) {
		router.Get("/", h.get)
		router.Put("/", h.update)
		router.Delete("/", h.delete)
		router.Patch("/status", h.changeStatus)
		router.Patch("/cancel", h.cancel)
	})

	return router
}

// create admits one booking or a whole recurrence group. A single
// non-recurring admission answers with the booking object; recurring
// requests answer with the ordered group.
func (h Bookings) create(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	var req bookings.CreateRequest
	if err := decode(r, &req); err != nil {
		detail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.svc.Create(r.Context(), claims, req)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	if !req.RecurringEnabled && len(created) == 1 {
		respond(w, r, http.StatusCreated, created[0])
		return
	}
	respond(w, r, http.StatusCreated, created)
}

func (h Bookings) list(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}

	f := postgres.BookingFilter{
		TenantID: claims.TenantID,
		Limit:    queryInt(r, "limit", 50),
		Offset:   queryInt(r, "offset", 0),
	}
	if tenantID, err := queryUUID(r, "tenant_id"); err != nil {
		detail(w, r, http.StatusBadRequest, "invalid tenant_id")
		return
	} else if tenantID != nil {
		f.TenantID = *tenantID
	}
	if resourceID, err := queryUUID(r, "resource_id"); err != nil {
		detail(w, r, http.StatusBadRequest, "invalid resource_id")
		return
	} else if resourceID != nil {
		f.ResourceID = resourceID
	}
	if userID, err := queryUUID(r, "user_id"); err != nil {
		detail(w, r, http.StatusBadRequest, "invalid user_id")
		return
	} else if userID != nil {
		f.UserID = userID
	}
	if v := queryString(r, "status"); v != nil {
		st := booking.Status(*v)
		f.Status = &st
	}
	if from, err := queryTime(r, "start_date"); err != nil {
		detail(w, r, http.StatusBadRequest, "invalid start_date")
		return
	} else if from != nil {
		f.From = from
	}
	if to, err := queryTime(r, "end_date"); err != nil {
		detail(w, r, http.StatusBadRequest, "invalid end_date")
		return
	} else if to != nil {
		f.To = to
	}

	found, err := h.svc.List(r.Context(), claims, f)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	render.JSON(w, r, found)
}

func (h Bookings) get(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		detail(w, r, http.StatusBadRequest, "invalid booking id")
		return
	}

	found, err := h.svc.Get(r.Context(), claims, id)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	render.JSON(w, r, found)
}

func (h Bookings) update(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		detail(w, r, http.StatusBadRequest, "invalid booking id")
		return
	}
	var req bookings.UpdateRequest
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

func (h Bookings) delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		detail(w, r, http.StatusBadRequest, "invalid booking id")
		return
	}

	if err := h.svc.Delete(r.Context(), claims, id); err != nil {
		respondError(w, r, h.log, err)
		return
	}
	render.NoContent(w, r)
}

// changeStatus applies an administrative transition, passed as
// ?status_param=<status>.
func (h Bookings) changeStatus(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		detail(w, r, http.StatusBadRequest, "invalid booking id")
		return
	}
	raw := r.URL.Query().Get("status_param")
	if raw == "" {
		detail(w, r, http.StatusUnprocessableEntity, "status_param is required")
		return
	}

	updated, err := h.svc.ChangeStatus(r.Context(), claims, id, booking.Status(raw))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	render.JSON(w, r, updated)
}

// cancel accepts an optional {"reason": ...} body and an optional
// ?cancelled_by= override for admins cancelling on behalf.
func (h Bookings) cancel(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		detail(w, r, http.StatusBadRequest, "invalid booking id")
		return
	}
	cancelledBy, err := queryUUID(r, "cancelled_by")
	if err != nil {
		detail(w, r, http.StatusBadRequest, "invalid cancelled_by")
		return
	}

	var body struct {
		Reason *string `json:"reason"`
	}
	if err := decode(r, &body); err != nil && !errors.Is(err, io.EOF) {
		detail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	cancelled, err := h.svc.Cancel(r.Context(), claims, id, cancelledBy, body.Reason)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	render.JSON(w, r, cancelled)
}

// resourceWindow serves the privacy-reduced occupancy of one resource
// between ?from= and ?to=.
func (h Bookings) resourceWindow(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	resourceID, err := pathUUID(r, "resourceID")
	if err != nil {
		detail(w, r, http.StatusBadRequest, "invalid resource id")
		return
	}
	from, err := queryTime(r, "from")
	if err != nil || from == nil {
		detail(w, r, http.StatusUnprocessableEntity, "from must be an RFC3339 timestamp or YYYY-MM-DD date")
		return
	}
	to, err := queryTime(r, "to")
	if err != nil || to == nil {
		detail(w, r, http.StatusUnprocessableEntity, "to must be an RFC3339 timestamp or YYYY-MM-DD date")
		return
	}

	items, err := h.svc.ResourceWindow(r.Context(), claims, resourceID, *from, *to)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	render.JSON(w, r, items)
}
