// Package progress records how far a user got in each guide.
package progress

import (
	"context"
	"errors"
	"net/http"

	"github.com/KromaEnergia/api-guias/internal/apperr"
	"github.com/KromaEnergia/api-guias/internal/auth"
	"github.com/KromaEnergia/api-guias/internal/models"
	"github.com/KromaEnergia/api-guias/internal/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Store interface {
	Upsert(ctx context.Context, p *models.Progress) (*models.Progress, error)
	Get(ctx context.Context, userID, guideID uuid.UUID) (*models.Progress, error)
}

type setRequest struct {
	GuideID   string  `json:"guideId" validate:"required,uuid"`
	StepID    *string `json:"stepId" validate:"omitempty,uuid"`
	Completed *bool   `json:"completed"`
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

// Set handles POST /api/users/{userId}/progress. Omitted completed means
// false and omitted stepId clears the current step.
func (h *Handler) Set(w http.ResponseWriter, r *http.Request) {
	userID, err := h.owner(r)
	if err != nil {
		utils.Error(w, err)
		return
	}
	var req setRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.Error(w, err)
		return
	}

	p := &models.Progress{UserID: userID, GuideID: uuid.MustParse(req.GuideID)}
	if req.StepID != nil {
		id := uuid.MustParse(*req.StepID)
		p.StepID = &id
	}
	if req.Completed != nil {
		p.Completed = *req.Completed
	}

	saved, err := h.Repository.Upsert(r.Context(), p)
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, saved)
}

// Get handles GET /api/users/{userId}/progress/{guideId}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := h.owner(r)
	if err != nil {
		utils.Error(w, err)
		return
	}
	guideID, err := utils.PathUUID(r, "guideId")
	if err != nil {
		utils.Error(w, err)
		return
	}
	p, err := h.Repository.Get(r.Context(), userID, guideID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			err = ErrProgressNotFound
		}
		h.fail(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, p)
}

func (h *Handler) owner(r *http.Request) (uuid.UUID, error) {
	userID, err := utils.PathUUID(r, "userId")
	if err != nil {
		return uuid.Nil, err
	}
	if _, err := auth.RequireSelfOrAdmin(r.Context(), userID); err != nil {
		return uuid.Nil, err
	}
	return userID, nil
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if apperr.Status(err) >= http.StatusInternalServerError {
		h.Log.Error("progress request failed", zap.Error(err))
	}
	utils.Error(w, err)
}
