package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"booking-system/internal/auth"
	"booking-system/internal/domain/user"
	"booking-system/internal/repository/postgres"
	users "booking-system/internal/users/service"
)

// Users routes registration, login and profile management.
type Users struct {
	svc  *users.Service
	auth *auth.Manager
	log  *zap.Logger
}

func NewUsers(svc *users.Service, manager *auth.Manager, logger *zap.Logger) Users {
	return Users{svc: svc, auth: manager, log: logger}
}

func (h Users) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/", h.create)
	router.Post("/login", h.login)

	router.Group(func(router chi.Router) {
		router.Use(h.auth.Middleware)

		router.Get("/", h.list)
		router.Get("/me", h.me)
		router.Route("/{id}", func(router chi.Router) {
			router.Get("/", h.get)
			router.Put("/", h.update)
			router.Delete("/", h.delete)
		})
	})

	return router
}

func (h Users) create(w http.ResponseWriter, r *http.Request) {
	var req user.CreateRequest
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

// loginResponse is the bearer-token envelope issued on login.
type loginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	User        user.User `json:"user"`
}

// login accepts a form-encoded credential pair, optionally scoped by
// tenant_id when the address exists under several tenants.
func (h Users) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		detail(w, r, http.StatusBadRequest, "invalid form body")
		return
	}
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")
	if email == "" || password == "" {
		detail(w, r, http.StatusUnprocessableEntity, "email and password are required")
		return
	}

	var tenantID *uuid.UUID
	if raw := r.PostFormValue("tenant_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			detail(w, r, http.StatusUnprocessableEntity, "invalid tenant_id")
			return
		}
		tenantID = &id
	}

	result, err := h.svc.Login(r.Context(), tenantID, email, password)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	render.JSON(w, r, loginResponse{
		AccessToken: result.Token,
		TokenType:   "bearer",
		User:        result.User,
	})
}

func (h Users) me(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}

	found, err := h.svc.Me(r.Context(), claims)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	render.JSON(w, r, found)
}

func (h Users) list(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}

	f := postgres.UserFilter{
		TenantID: claims.TenantID,
		IsActive: queryBool(r, "is_active"),
		Search:   queryString(r, "search"),
		Limit:    queryInt(r, "limit", 50),
		Offset:   queryInt(r, "offset", 0),
	}
	if tenantID, err := queryUUID(r, "tenant_id"); err != nil {
		detail(w, r, http.StatusBadRequest, "invalid tenant_id")
		return
	} else if tenantID != nil {
		f.TenantID = *tenantID
	}
	if v := queryString(r, "user_type"); v != nil {
		t := user.Type(*v)
		f.Type = &t
	}

	found, err := h.svc.List(r.Context(), claims, f)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	render.JSON(w, r, found)
}

func (h Users) get(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		detail(w, r, http.StatusBadRequest, "invalid user id")
		return
	}

	found, err := h.svc.Get(r.Context(), claims, id)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	render.JSON(w, r, found)
}

func (h Users) update(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		detail(w, r, http.StatusBadRequest, "invalid user id")
		return
	}
	var req user.UpdateRequest
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

func (h Users) delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		detail(w, r, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := h.svc.Delete(r.Context(), claims, id); err != nil {
		respondError(w, r, h.log, err)
		return
	}
	render.NoContent(w, r)
}
