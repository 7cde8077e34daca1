package user

import (
	"context"
	"errors"
	"net/http"

	"github.com/KromaEnergia/api-guias/internal/apperr"
	"github.com/KromaEnergia/api-guias/internal/auth"
	"github.com/KromaEnergia/api-guias/internal/media"
	"github.com/KromaEnergia/api-guias/internal/models"
	"github.com/KromaEnergia/api-guias/internal/storage"
	"github.com/KromaEnergia/api-guias/internal/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is what the profile handlers need from the user repository.
type Store interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, changes ProfileChanges) (*models.User, error)
	SetPhoto(ctx context.Context, id uuid.UUID, url *string) (*models.User, error)
}

var errUserNotFound = apperr.New(apperr.NotFound, "user not found")

// Handler serves the /api/users/me endpoints. All of them run behind
// auth.Authenticate.
type Handler struct {
	Repository    Store
	Storage       storage.Storage
	MaxPhotoBytes int64
	Log           *zap.Logger
}

func NewHandler(repo Store, store storage.Storage, maxPhotoBytes int64, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Repository: repo, Storage: store, MaxPhotoBytes: maxPhotoBytes, Log: log}
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		utils.Error(w, auth.ErrUnauthorized)
		return
	}
	u, err := h.Repository.FindByID(r.Context(), p.ID)
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, ToResponse(u))
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		utils.Error(w, auth.ErrUnauthorized)
		return
	}
	var req updateProfileRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.Error(w, err)
		return
	}
	changes := ProfileChanges{Name: req.Name, Email: req.Email}

	u, err := h.Repository.UpdateProfile(r.Context(), p.ID, changes)
	if err != nil {
		if errors.Is(err, apperr.ErrDuplicate) {
			utils.Error(w, auth.ErrEmailTaken)
			return
		}
		h.fail(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, ToResponse(u))
}

// UploadPhoto replaces the caller's profile photo with an image sent as the
// multipart field "file".
func (h *Handler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		utils.Error(w, auth.ErrUnauthorized)
		return
	}
	current, err := h.Repository.FindByID(r.Context(), p.ID)
	if err != nil {
		h.fail(w, err)
		return
	}

	up, err := media.Receive(w, r, h.MaxPhotoBytes, models.MediaPhoto)
	if err != nil {
		utils.Error(w, err)
		return
	}
	defer up.Close()

	url, err := media.Save(r.Context(), h.Storage, "profile", up)
	if err != nil {
		h.fail(w, err)
		return
	}
	u, err := h.Repository.SetPhoto(r.Context(), p.ID, &url)
	if err != nil {
		h.removeObject(r.Context(), &url)
		h.fail(w, err)
		return
	}
	h.removeObject(r.Context(), current.ProfilePhoto)
	utils.JSON(w, http.StatusOK, ToResponse(u))
}

func (h *Handler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		utils.Error(w, auth.ErrUnauthorized)
		return
	}
	current, err := h.Repository.FindByID(r.Context(), p.ID)
	if err != nil {
		h.fail(w, err)
		return
	}
	u, err := h.Repository.SetPhoto(r.Context(), p.ID, nil)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.removeObject(r.Context(), current.ProfilePhoto)
	utils.JSON(w, http.StatusOK, ToResponse(u))
}

// removeObject deletes a stored photo. Failures only leave an orphaned file,
// so they are logged and not returned.
func (h *Handler) removeObject(ctx context.Context, url *string) {
	if url == nil {
		return
	}
	key, ok := h.Storage.KeyFromURL(*url)
	if !ok {
		return
	}
	if err := h.Storage.Delete(ctx, key); err != nil {
		h.Log.Warn("delete stored photo", zap.String("key", key), zap.Error(err))
	}
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, apperr.ErrNotFound) {
		utils.Error(w, errUserNotFound)
		return
	}
	if apperr.Status(err) >= http.StatusInternalServerError {
		h.Log.Error("user request failed", zap.Error(err))
	}
	utils.Error(w, err)
}
