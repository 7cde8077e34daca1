// Package admin serves the admin dashboard and seeds the first admin account.
package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/KromaEnergia/api-guias/internal/apperr"
	"github.com/KromaEnergia/api-guias/internal/auth"
	"github.com/KromaEnergia/api-guias/internal/config"
	"github.com/KromaEnergia/api-guias/internal/models"
	"github.com/KromaEnergia/api-guias/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Counter counts the rows of one table.
type Counter interface {
	Count(ctx context.Context) (int64, error)
}

type Dashboard struct {
	Message   string `json:"message"`
	Users     int64  `json:"users"`
	Guides    int64  `json:"guides"`
	Bookmarks int64  `json:"bookmarks"`
}

type Handler struct {
	Users     Counter
	Guides    Counter
	Bookmarks Counter
	Log       *zap.Logger
}

func NewHandler(users, guides, bookmarks Counter, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Users: users, Guides: guides, Bookmarks: bookmarks, Log: log}
}

// Dashboard is mounted behind auth.RequireRole(admin).
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d := Dashboard{Message: "Welcome, Admin!"}

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) { d.Users, err = h.Users.Count(ctx); return })
	g.Go(func() (err error) { d.Guides, err = h.Guides.Count(ctx); return })
	g.Go(func() (err error) { d.Bookmarks, err = h.Bookmarks.Count(ctx); return })
	if err := g.Wait(); err != nil {
		h.Log.Error("dashboard counts", zap.Error(err))
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, d)
}

// AccountStore is the part of the user store seeding needs.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
}

// SeedAdmin creates the admin account described by cfg unless a user with
// that email already exists. An empty password is replaced by a generated
// one, which is logged once. It reports whether an account was created.
func SeedAdmin(ctx context.Context, store AccountStore, cfg config.AdminConfig, log *zap.Logger) (bool, error) {
	if cfg.Email == "" {
		return false, nil
	}
	email := auth.NormalizeEmail(cfg.Email)

	existing, err := store.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role != models.RoleAdmin {
			log.Warn("seed admin: email belongs to a non-admin user", zap.String("email", email))
		}
		return false, nil
	case !errors.Is(err, apperr.ErrNotFound):
		return false, fmt.Errorf("look up admin: %w", err)
	}

	password := cfg.Password
	generated := password == ""
	if generated {
		if password, err = utils.GenerateTemporaryPassword(); err != nil {
			return false, err
		}
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return false, err
	}

	u := &models.User{Email: email, Password: hash, Role: models.RoleAdmin}
	if cfg.Name != "" {
		name := cfg.Name
		u.Name = &name
	}
	if err := store.Create(ctx, u); err != nil {
		if errors.Is(err, apperr.ErrDuplicate) {
			return false, nil
		}
		return false, fmt.Errorf("create admin: %w", err)
	}

	fields := []zap.Field{zap.String("email", email), zap.String("id", u.ID.String())}
	if generated {
		fields = append(fields, zap.String("temporary_password", password))
	}
	log.Info("admin user seeded", fields...)
	return true, nil
}
