package media

import (
	"net/http"

	"github.com/KromaEnergia/api-guias/internal/models"
	"github.com/KromaEnergia/api-guias/internal/storage"
	"github.com/KromaEnergia/api-guias/internal/utils"
	"go.uber.org/zap"
)

type UploadResponse struct {
	URL       string           `json:"url"`
	MediaType models.MediaType `json:"media_type"`
}

type Handler struct {
	Storage  storage.Storage
	MaxBytes int64
	Log      *zap.Logger
}

func NewHandler(store storage.Storage, maxBytes int64, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Storage: store, MaxBytes: maxBytes, Log: log}
}

// Upload stores guide or step media and returns where it is served from.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	up, err := Receive(w, r, h.MaxBytes, "")
	if err != nil {
		utils.Error(w, err)
		return
	}
	defer up.Close()

	url, err := Save(r.Context(), h.Storage, "guides", up)
	if err != nil {
		h.Log.Error("save upload", zap.Error(err))
		utils.Error(w, err)
		return
	}
	h.Log.Info("media uploaded",
		zap.String("url", url),
		zap.String("content_type", up.ContentType),
		zap.Int64("size", up.Size),
	)
	utils.JSON(w, http.StatusCreated, UploadResponse{URL: url, MediaType: up.MediaType})
}
