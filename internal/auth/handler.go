package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/nimbus-stack/nimbus/internal/identity"
	"github.com/nimbus-stack/nimbus/internal/platform/httpx"
)

// LoginLimiter throttles login attempts. May be nil to disable throttling.
type LoginLimiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// LoginObserver records login outcomes for monitoring. May be nil.
type LoginObserver interface {
	ObserveLogin(outcome string)
}

// Handler wires HTTP endpoints for the authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	limiter   LoginLimiter
	observer  LoginObserver
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, limiter LoginLimiter, observer LoginObserver) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		limiter:   limiter,
		observer:  observer,
		validator: validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/signup", h.handleSignup)
	r.Post("/login", h.handleLogin)
	r.Post("/refresh", h.handleRefresh)
}

type signupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=100"`
	Name     string `json:"name" validate:"required,min=2,max=50"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeInvalidInput, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeInvalidInput, "email, password (min 8 chars) and name (2-50 chars) are required")
		return
	}

	user, err := h.service.Signup(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		h.logger.Warn("signup failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, identity.NewUserResponse(user))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeInvalidInput, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeInvalidInput, "email and password are required")
		return
	}

	if !h.allowAttempt(w, r, req.Email) {
		return
	}

	pair, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.observeLogin("failure")
		httpx.RespondError(w, err)
		return
	}
	h.observeLogin("success")
	httpx.JSON(w, http.StatusOK, pair)
}

func (h *Handler) observeLogin(outcome string) {
	if h.observer != nil {
		h.observer.ObserveLogin(outcome)
	}
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeInvalidInput, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeInvalidInput, "refreshToken is required")
		return
	}

	pair, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pair)
}

// allowAttempt applies the login throttle. Redis outages fail open: a broken
// limiter must not lock everyone out.
func (h *Handler) allowAttempt(w http.ResponseWriter, r *http.Request, email string) bool {
	if h.limiter == nil {
		return true
	}
	allowed, retryAfter, err := h.limiter.Allow(r.Context(), loginKey(r, email))
	if err != nil {
		h.logger.Warn("login throttle", slog.Any("error", err))
		return true
	}
	if !allowed {
		seconds := int(math.Ceil(retryAfter.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		httpx.Error(w, http.StatusTooManyRequests, httpx.CodeRateLimited, "too many attempts, try again later")
		return false
	}
	return true
}

// loginKey buckets attempts per client IP and (hashed) login handle.
func loginKey(r *http.Request, email string) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	sum := sha256.Sum256([]byte(identity.NormalizeEmail(email)))
	return "login:" + ip + ":" + hex.EncodeToString(sum[:8])
}
