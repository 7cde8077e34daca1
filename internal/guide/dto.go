package guide

import (
	"github.com/KromaEnergia/api-guias/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type tipRequest struct {
	Type string `json:"type" validate:"required,max=40"`
	Text string `json:"text" validate:"required,max=2000"`
}

type stepRequest struct {
	Title           string       `json:"title" validate:"required,max=200"`
	Body            *string      `json:"body" validate:"omitempty,max=10000"`
	Order           *int         `json:"order" validate:"omitempty,gte=0"`
	MediaURL        *string      `json:"mediaUrl" validate:"omitempty,max=2048"`
	MediaType       *string      `json:"mediaType" validate:"omitempty,oneof=photo video"`
	EstimateMinutes *int         `json:"estimateMinutes" validate:"omitempty,gte=0"`
	Tips            []tipRequest `json:"tips" validate:"omitempty,max=50,dive"`
}

// guideRequest is the body of both POST and PUT. On PUT a nil Steps keeps
// the existing steps and a non-nil one replaces them.
type guideRequest struct {
	Title       string        `json:"title" validate:"required,max=200"`
	Description *string       `json:"description" validate:"omitempty,max=10000"`
	Category    *string       `json:"category" validate:"omitempty,max=80"`
	Difficulty  *string       `json:"difficulty" validate:"omitempty,max=40"`
	Duration    *string       `json:"duration" validate:"omitempty,max=40"`
	Rating      *float64      `json:"rating" validate:"omitempty,gte=0,lte=5"`
	Language    *string       `json:"language" validate:"omitempty,min=2,max=10"`
	Tags        []string      `json:"tags" validate:"omitempty,max=20,dive,required,max=40"`
	Steps       []stepRequest `json:"steps" validate:"omitempty,max=200,dive"`
}

func (req guideRequest) toModel() models.Guide {
	g := models.Guide{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Difficulty:  req.Difficulty,
		Duration:    req.Duration,
		Language:    "en",
		Tags:        datatypes.JSONSlice[string]{},
	}
	if req.Rating != nil {
		g.Rating = *req.Rating
	}
	if req.Language != nil {
		g.Language = *req.Language
	}
	if req.Tags != nil {
		g.Tags = datatypes.JSONSlice[string](req.Tags)
	}
	if req.Steps != nil {
		g.Steps = make([]models.Step, 0, len(req.Steps))
		for i, s := range req.Steps {
			step := s.toModel(uuid.Nil)
			if s.Order == nil {
				step.Order = i + 1
			}
			g.Steps = append(g.Steps, step)
		}
	}
	return g
}

func (req stepRequest) toModel(guideID uuid.UUID) models.Step {
	s := models.Step{
		GuideID:         guideID,
		Title:           req.Title,
		Body:            req.Body,
		MediaURL:        req.MediaURL,
		EstimateMinutes: req.EstimateMinutes,
		Tips:            make([]models.Tip, 0, len(req.Tips)),
	}
	if req.Order != nil {
		s.Order = *req.Order
	}
	if req.MediaType != nil {
		mt := models.MediaType(*req.MediaType)
		s.MediaType = &mt
	}
	for _, t := range req.Tips {
		s.Tips = append(s.Tips, t.toModel(uuid.Nil))
	}
	return s
}

func (req tipRequest) toModel(stepID uuid.UUID) models.Tip {
	return models.Tip{StepID: stepID, Type: req.Type, Text: req.Text}
}

// guideEvent is the payload of guides.* events.
type guideEvent struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title,omitempty"`
}
