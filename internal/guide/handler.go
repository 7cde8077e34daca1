package guide

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/KromaEnergia/api-guias/internal/apperr"
	"github.com/KromaEnergia/api-guias/internal/models"
	"github.com/KromaEnergia/api-guias/internal/notify"
	"github.com/KromaEnergia/api-guias/internal/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultLimit = 50
	maxLimit     = 100
)

// Store is the persistence the guide handlers need.
type Store interface {
	List(ctx context.Context, f Filter) ([]models.Guide, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Guide, error)
	Create(ctx context.Context, g *models.Guide) error
	Update(ctx context.Context, g *models.Guide, replaceSteps bool) error
	Delete(ctx context.Context, id uuid.UUID) error
	AddStep(ctx context.Context, s *models.Step, appendLast bool) error
	DeleteStep(ctx context.Context, guideID, stepID uuid.UUID) error
	AddTip(ctx context.Context, t *models.Tip) error
}

var (
	errGuideNotFound = apperr.New(apperr.NotFound, "guide not found")
	errStepNotFound  = apperr.New(apperr.NotFound, "step not found")
)

// Handler serves /api/guides. Reads are public; writes are mounted behind
// auth.RequireRole(admin).
type Handler struct {
	Repository Store
	Events     notify.Publisher
	Log        *zap.Logger
}

func NewHandler(repo Store, events notify.Publisher, log *zap.Logger) *Handler {
	if events == nil {
		events = notify.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Repository: repo, Events: events, Log: log}
}

// List returns guides matching the query string filters, steps included.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		utils.Error(w, err)
		return
	}
	guides, err := h.Repository.List(r.Context(), f)
	if err != nil {
		h.fail(w, err, errGuideNotFound)
		return
	}
	utils.JSON(w, http.StatusOK, guides)
}

func parseFilter(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	f := Filter{
		Category:   q.Get("category"),
		Difficulty: q.Get("difficulty"),
		Language:   q.Get("language"),
		Tag:        q.Get("tag"),
		Query:      q.Get("q"),
		Limit:      defaultLimit,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxLimit {
			return f, apperr.New(apperr.BadRequest, "limit must be between 1 and 100")
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, apperr.New(apperr.BadRequest, "offset must be a non-negative integer")
		}
		f.Offset = n
	}
	return f, nil
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := utils.PathUUID(r, "id")
	if err != nil {
		utils.Error(w, err)
		return
	}
	g, err := h.Repository.Get(r.Context(), id)
	if err != nil {
		h.fail(w, err, errGuideNotFound)
		return
	}
	utils.JSON(w, http.StatusOK, g)
}

// Create stores a guide with optional nested steps and tips.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req guideRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.Error(w, err)
		return
	}
	g := req.toModel()
	if err := h.Repository.Create(r.Context(), &g); err != nil {
		h.fail(w, err, errGuideNotFound)
		return
	}
	h.publish(r.Context(), notify.SubjectGuideCreated, guideEvent{ID: g.ID, Title: g.Title})
	h.respondGuide(w, r, http.StatusCreated, g.ID)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := utils.PathUUID(r, "id")
	if err != nil {
		utils.Error(w, err)
		return
	}
	var req guideRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.Error(w, err)
		return
	}
	g := req.toModel()
	g.ID = id
	if err := h.Repository.Update(r.Context(), &g, req.Steps != nil); err != nil {
		h.fail(w, err, errGuideNotFound)
		return
	}
	h.publish(r.Context(), notify.SubjectGuideUpdated, guideEvent{ID: g.ID, Title: g.Title})
	h.respondGuide(w, r, http.StatusOK, id)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := utils.PathUUID(r, "id")
	if err != nil {
		utils.Error(w, err)
		return
	}
	if err := h.Repository.Delete(r.Context(), id); err != nil {
		h.fail(w, err, errGuideNotFound)
		return
	}
	h.publish(r.Context(), notify.SubjectGuideDeleted, guideEvent{ID: id})
	utils.Message(w, http.StatusOK, "guide deleted")
}

// AddStep appends a step. Without an explicit order it goes last.
func (h *Handler) AddStep(w http.ResponseWriter, r *http.Request) {
	guideID, err := utils.PathUUID(r, "id")
	if err != nil {
		utils.Error(w, err)
		return
	}
	var req stepRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.Error(w, err)
		return
	}
	s := req.toModel(guideID)
	if err := h.Repository.AddStep(r.Context(), &s, req.Order == nil); err != nil {
		h.fail(w, err, errGuideNotFound)
		return
	}
	h.publish(r.Context(), notify.SubjectGuideUpdated, guideEvent{ID: guideID})
	utils.JSON(w, http.StatusCreated, s)
}

func (h *Handler) DeleteStep(w http.ResponseWriter, r *http.Request) {
	guideID, err := utils.PathUUID(r, "id")
	if err != nil {
		utils.Error(w, err)
		return
	}
	stepID, err := utils.PathUUID(r, "stepId")
	if err != nil {
		utils.Error(w, err)
		return
	}
	if err := h.Repository.DeleteStep(r.Context(), guideID, stepID); err != nil {
		h.fail(w, err, errStepNotFound)
		return
	}
	h.publish(r.Context(), notify.SubjectGuideUpdated, guideEvent{ID: guideID})
	utils.Message(w, http.StatusOK, "step deleted")
}

func (h *Handler) AddTip(w http.ResponseWriter, r *http.Request) {
	stepID, err := utils.PathUUID(r, "stepId")
	if err != nil {
		utils.Error(w, err)
		return
	}
	var req tipRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.Error(w, err)
		return
	}
	t := req.toModel(stepID)
	if err := h.Repository.AddTip(r.Context(), &t); err != nil {
		h.fail(w, err, errStepNotFound)
		return
	}
	utils.JSON(w, http.StatusCreated, t)
}

// respondGuide re-reads the guide so the response carries generated ids,
// timestamps and ordered steps.
func (h *Handler) respondGuide(w http.ResponseWriter, r *http.Request, status int, id uuid.UUID) {
	g, err := h.Repository.Get(r.Context(), id)
	if err != nil {
		h.fail(w, err, errGuideNotFound)
		return
	}
	utils.JSON(w, status, g)
}

func (h *Handler) publish(ctx context.Context, subject string, data any) {
	if err := h.Events.Publish(ctx, notify.NewEvent(subject, data)); err != nil {
		h.Log.Warn("publish event", zap.String("subject", subject), zap.Error(err))
	}
}

// fail renders err, using notFound for missing rows.
func (h *Handler) fail(w http.ResponseWriter, err error, notFound error) {
	if errors.Is(err, apperr.ErrNotFound) {
		utils.Error(w, notFound)
		return
	}
	if apperr.Status(err) >= http.StatusInternalServerError {
		h.Log.Error("guide request failed", zap.Error(err))
	}
	utils.Error(w, err)
}
