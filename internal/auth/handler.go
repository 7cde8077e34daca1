package auth

import (
	"net/http"

	"github.com/KromaEnergia/api-guias/internal/apperr"
	"github.com/KromaEnergia/api-guias/internal/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type registerRequest struct {
	Email    string  `json:"email" validate:"required,email,max=254"`
	Password string  `json:"password" validate:"required,min=5,max=72"`
	Name     *string `json:"name" validate:"omitempty,max=120"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (r *registerRequest) Normalize() { r.Email = NormalizeEmail(r.Email) }

func (r *loginRequest) Normalize() { r.Email = NormalizeEmail(r.Email) }

type refreshRequest struct {
	UserID       string `json:"userId" validate:"required,uuid"`
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// Handler exposes the auth flow over HTTP.
type Handler struct {
	Service *Service
	Log     *zap.Logger
}

func NewHandler(svc *Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Service: svc, Log: log}
}

// Register creates a user account and returns its first token pair.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.Error(w, err)
		return
	}
	pair, err := h.Service.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		h.fail(w, "register", err)
		return
	}
	utils.JSON(w, http.StatusCreated, pair)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.Error(w, err)
		return
	}
	pair, err := h.Service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, "login", err)
		return
	}
	utils.JSON(w, http.StatusOK, pair)
}

// Logout must run behind Authenticate.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		utils.Error(w, errMissingBearer)
		return
	}
	if err := h.Service.Logout(r.Context(), p.ID); err != nil {
		h.fail(w, "logout", err)
		return
	}
	utils.Message(w, http.StatusOK, "logged out")
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.Error(w, err)
		return
	}
	id, err := uuid.Parse(req.UserID)
	if err != nil {
		utils.Error(w, ErrUnauthorized)
		return
	}
	pair, err := h.Service.Refresh(r.Context(), id, req.RefreshToken)
	if err != nil {
		h.fail(w, "refresh", err)
		return
	}
	utils.JSON(w, http.StatusOK, pair)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if apperr.Status(err) >= http.StatusInternalServerError {
		h.Log.Error("auth operation failed", zap.String("operation", op), zap.Error(err))
	}
	utils.Error(w, err)
}
