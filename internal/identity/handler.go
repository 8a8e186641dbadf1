package identity

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/nimbus-stack/nimbus/internal/platform/httpx"
	"github.com/nimbus-stack/nimbus/internal/shared"
)

// AccessGuard gates routes on the authenticated principal. Implemented by the
// auth package; an interface here keeps the dependency pointing one way.
type AccessGuard interface {
	RequireAuth(next http.Handler) http.Handler
	RequireRole(role shared.Role) func(http.Handler) http.Handler
}

// Handler wires the user CRUD endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     AccessGuard
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard AccessGuard) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		guard:     guard,
		validator: validator.New(),
	}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAuth)
		r.Get("/me", h.getCurrentUser)
		r.Patch("/me", h.updateCurrentUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAuth, h.guard.RequireRole(shared.RoleAdmin))
		r.Get("/", h.listUsers)
		r.Get("/{id}", h.getUser)
		r.Delete("/{id}", h.deleteUser)
	})
}

type userResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewUserResponse maps a user to its API shape. The password hash is never
// echoed.
func NewUserResponse(user *User) userResponse {
	return userResponse{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      string(user.Role),
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

type updateUserRequest struct {
	Name string `json:"name" validate:"required,min=2,max=50"`
}

func (h *Handler) getCurrentUser(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	user, err := h.service.GetByEmail(r.Context(), principal.Email)
	if err != nil {
		h.logger.Error("get current user", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewUserResponse(user))
}

func (h *Handler) updateCurrentUser(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())

	var req updateUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeInvalidInput, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeInvalidInput, "name must be between 2 and 50 characters")
		return
	}

	user, err := h.service.UpdateName(r.Context(), principal.UserID, req.Name)
	if err != nil {
		h.logger.Error("update current user", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewUserResponse(user))
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	responses := make([]userResponse, 0, len(users))
	for i := range users {
		responses = append(responses, NewUserResponse(&users[i]))
	}
	httpx.JSON(w, http.StatusOK, responses)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeInvalidInput, "invalid user id")
		return
	}
	user, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewUserResponse(user))
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeInvalidInput, "invalid user id")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
