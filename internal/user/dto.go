package user

import (
	"time"

	"github.com/KromaEnergia/api-guias/internal/auth"
	"github.com/KromaEnergia/api-guias/internal/models"
	"github.com/google/uuid"
)

// UserResponse is the public view of a user. Password and refresh hashes are
// never part of it.
type UserResponse struct {
	ID           uuid.UUID   `json:"id"`
	Email        string      `json:"email"`
	Name         *string     `json:"name"`
	ProfilePhoto *string     `json:"profilePhoto"`
	Role         models.Role `json:"role"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

func ToResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		ProfilePhoto: u.ProfilePhoto,
		Role:         u.Role,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

type updateProfileRequest struct {
	Name  *string `json:"name" validate:"omitempty,max=120"`
	Email *string `json:"email" validate:"omitempty,email,max=254"`
}

func (r *updateProfileRequest) Normalize() {
	if r.Email != nil {
		email := auth.NormalizeEmail(*r.Email)
		r.Email = &email
	}
}
