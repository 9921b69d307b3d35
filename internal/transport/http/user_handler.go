package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "vmscli/internal/errors"
	"vmscli/internal/store"
)

// UserHandler manages desk operator accounts and their sign-in.
type UserHandler struct {
	store  *store.Store
	logger *slog.Logger
}

// NewUserHandler creates a user handler.
func NewUserHandler(st *store.Store, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		store:  st,
		logger: logger.With(slog.String("handler", "user")),
	}
}

// Routes returns the chi router for /api/users.
func (h *UserHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/login", h.Login)
	r.Delete("/{userID}", h.Delete)
	r.Put("/{userID}/active", h.SetActive)
	r.Put("/{userID}/role", h.SetRole)

	return r
}

// CreateUserRequest is the new-account payload.
type CreateUserRequest struct {
	Name         string `json:"name" validate:"required"`
	Organization string `json:"organization"`
	UserID       string `json:"user_id" validate:"required"`
	Password     string `json:"password" validate:"required,min=6"`
	Role         string `json:"role" validate:"required,oneof=admin operator"`
}

// UserLoginRequest is the operator sign-in payload.
type UserLoginRequest struct {
	UserID   string `json:"user_id" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// SetActiveRequest flips an account on or off.
type SetActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// SetRoleRequest changes an account's role.
type SetRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=admin operator"`
}

// Create handles POST /api/users.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := validate.Struct(&req); err != nil {
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	existing, err := h.store.UserByID(req.UserID)
	if err != nil {
		h.serverError(w, r, "user lookup", err)
		return
	}
	if existing != nil {
		render.Render(w, r, apierrors.New(http.StatusConflict,
			"USER_EXISTS", "User id is already taken"))
		return
	}

	if err := h.store.CreateUser(req.Name, req.Organization, req.UserID, req.Password, req.Role); err != nil {
		h.serverError(w, r, "create user", err)
		return
	}

	h.logger.Info("operator account created",
		slog.String("user_id", req.UserID),
		slog.String("role", req.Role))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]any{"success": true, "user_id": req.UserID})
}

// List handles GET /api/users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers()
	if err != nil {
		h.serverError(w, r, "list users", err)
		return
	}
	render.JSON(w, r, users)
}

// Login handles POST /api/users/login. Wrong id, wrong password and
// disabled account all render the same 401.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req UserLoginRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := validate.Struct(&req); err != nil {
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	user, err := h.store.UserByCredentials(req.UserID, req.Password)
	if err != nil {
		h.serverError(w, r, "credential check", err)
		return
	}
	if user == nil || !user.IsActive {
		h.logger.Warn("operator login rejected", slog.String("user_id", req.UserID))
		render.Render(w, r, apierrors.New(http.StatusUnauthorized,
			"INVALID_CREDENTIALS", "Invalid user id or password"))
		return
	}

	h.logger.Info("operator login", slog.String("user_id", user.UserID))
	render.JSON(w, r, user)
}

// Delete handles DELETE /api/users/{userID}.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := h.store.DeleteUser(userID); err != nil {
		h.serverError(w, r, "delete user", err)
		return
	}
	render.JSON(w, r, map[string]any{"success": true, "user_id": userID})
}

// SetActive handles PUT /api/users/{userID}/active.
func (h *UserHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req SetActiveRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := validate.Struct(&req); err != nil {
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	if err := h.store.SetUserActive(userID, *req.Active); err != nil {
		h.serverError(w, r, "set user active", err)
		return
	}
	render.JSON(w, r, map[string]any{"success": true, "user_id": userID, "active": *req.Active})
}

// SetRole handles PUT /api/users/{userID}/role.
func (h *UserHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req SetRoleRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := validate.Struct(&req); err != nil {
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	if err := h.store.SetUserRole(userID, req.Role); err != nil {
		h.serverError(w, r, "set user role", err)
		return
	}
	render.JSON(w, r, map[string]any{"success": true, "user_id": userID, "role": req.Role})
}

func (h *UserHandler) serverError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Error(op+" failed", slog.String("error", err.Error()))
	render.Render(w, r, apierrors.ErrInternalServer)
}
