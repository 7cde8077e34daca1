// Package bookmark lets a user keep a list of guides to come back to.
package bookmark

import (
	"context"
	"net/http"

	"github.com/KromaEnergia/api-guias/internal/apperr"
	"github.com/KromaEnergia/api-guias/internal/auth"
	"github.com/KromaEnergia/api-guias/internal/models"
	"github.com/KromaEnergia/api-guias/internal/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Store interface {
	Toggle(ctx context.Context, userID, guideID uuid.UUID) (bool, *models.Bookmark, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.Bookmark, error)
}

type toggleRequest struct {
	GuideID string `json:"guideId" validate:"required,uuid"`
}

// ToggleResponse is {"removed":true} or {"added":true,"bookmark":{...}}.
type ToggleResponse struct {
	Added    bool             `json:"added,omitempty"`
	Removed  bool             `json:"removed,omitempty"`
	Bookmark *models.Bookmark `json:"bookmark,omitempty"`
}

type Handler struct {
	Repository Store
	Log        *zap.Logger
}

func NewHandler(repo Store, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Repository: repo, Log: log}
}

// Toggle handles POST /api/users/{userId}/bookmarks.
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.owner(w, r)
	if !ok {
		return
	}
	var req toggleRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.Error(w, err)
		return
	}
	added, b, err := h.Repository.Toggle(r.Context(), userID, uuid.MustParse(req.GuideID))
	if err != nil {
		h.fail(w, err)
		return
	}
	if !added {
		utils.JSON(w, http.StatusOK, ToggleResponse{Removed: true})
		return
	}
	utils.JSON(w, http.StatusCreated, ToggleResponse{Added: true, Bookmark: b})
}

// List handles GET /api/users/{userId}/bookmarks.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.owner(w, r)
	if !ok {
		return
	}
	list, err := h.Repository.List(r.Context(), userID)
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, list)
}

// owner resolves {userId} and checks the caller may act on it.
func (h *Handler) owner(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, err := utils.PathUUID(r, "userId")
	if err != nil {
		utils.Error(w, err)
		return uuid.Nil, false
	}
	if _, err := auth.RequireSelfOrAdmin(r.Context(), userID); err != nil {
		utils.Error(w, err)
		return uuid.Nil, false
	}
	return userID, true
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if apperr.Status(err) >= http.StatusInternalServerError {
		h.Log.Error("bookmark request failed", zap.Error(err))
	}
	utils.Error(w, err)
}
