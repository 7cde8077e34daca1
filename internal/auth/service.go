package auth

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/KromaEnergia/api-guias/internal/apperr"
	"github.com/KromaEnergia/api-guias/internal/metrics"
	"github.com/KromaEnergia/api-guias/internal/models"
	"github.com/KromaEnergia/api-guias/internal/notify"
	"github.com/KromaEnergia/api-guias/internal/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service drives register, login, logout and refresh against the
// credential store and the token service.
type Service struct {
	Store  CredentialStore
	Tokens *TokenService
	Events notify.Publisher
	Log    *zap.Logger

	// RevokeOnReuse clears the stored hash when a validly signed but stale
	// refresh token is presented, forcing the user to log in again.
	RevokeOnReuse bool
}

func NewService(store CredentialStore, tokens *TokenService, events notify.Publisher, log *zap.Logger) *Service {
	if events == nil {
		events = notify.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{Store: store, Tokens: tokens, Events: events, Log: log}
}

// dummyHash is compared against when the email is unknown so that login
// takes the same time whether or not the account exists.
var dummyHash = sync.OnceValue(func() string {
	h, _ := utils.HashPassword("dummy-password-for-timing")
	return h
})

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) Register(ctx context.Context, email, password string, name *string) (*TokenPair, error) {
	email = NormalizeEmail(email)

	_, err := s.Store.FindByEmail(ctx, email)
	switch {
	case err == nil:
		metrics.Auth("register", "rejected")
		return nil, ErrEmailTaken
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, err
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, apperr.Wrap(apperr.BadRequest, "password cannot be used", err)
	}
	user := &models.User{Email: email, Password: hash, Name: name, Role: models.RoleUser}
	if err := s.Store.Create(ctx, user); err != nil {
		if errors.Is(err, apperr.ErrDuplicate) {
			metrics.Auth("register", "rejected")
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	pair, err := s.Tokens.IssueTokenPair(ctx, user.ID, user.Email, user.Role)
	if err != nil {
		metrics.Auth("register", "error")
		return nil, err
	}
	metrics.Auth("register", "ok")
	s.publish(ctx, notify.SubjectUserRegistered, map[string]string{"id": user.ID.String(), "email": user.Email})
	return pair, nil
}

// Login returns ErrInvalidCredentials for both an unknown email and a wrong
// password.
func (s *Service) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := s.Store.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			utils.CheckPassword(dummyHash(), password)
			metrics.Auth("login", "rejected")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !utils.CheckPassword(user.Password, password) {
		metrics.Auth("login", "rejected")
		return nil, ErrInvalidCredentials
	}

	pair, err := s.Tokens.IssueTokenPair(ctx, user.ID, user.Email, user.Role)
	if err != nil {
		metrics.Auth("login", "error")
		return nil, err
	}
	metrics.Auth("login", "ok")
	return pair, nil
}

// Logout clears the stored refresh hash. Calling it again is a no-op. A
// token whose user no longer exists is rejected as unauthorized.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID) error {
	if err := s.Store.SetRefreshHash(ctx, userID, nil); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			metrics.Auth("logout", "rejected")
			return ErrUnauthorized
		}
		return err
	}
	metrics.Auth("logout", "ok")
	return nil
}

// Refresh exchanges the most recently issued refresh token of userID for a
// new pair. Each refresh token can be used once.
func (s *Service) Refresh(ctx context.Context, userID uuid.UUID, refreshToken string) (*TokenPair, error) {
	claims, err := s.Tokens.ParseRefreshToken(refreshToken)
	if err != nil {
		metrics.Auth("refresh", "rejected")
		return nil, ErrUnauthorized
	}
	if claims.Subject != userID.String() {
		metrics.Auth("refresh", "rejected")
		return nil, ErrUnauthorized
	}

	user, err := s.Tokens.VerifyRefresh(ctx, userID, refreshToken)
	if err != nil {
		if errors.Is(err, errRefreshMismatch) {
			s.onReuse(ctx, userID)
			return nil, ErrUnauthorized
		}
		if apperr.KindOf(err) == apperr.Unauthorized {
			metrics.Auth("refresh", "rejected")
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	pair, err := s.Tokens.RotateTokenPair(ctx, user, *user.RefreshTokenHash)
	if err != nil {
		if errors.Is(err, errRefreshMismatch) {
			// another request rotated the hash between read and write
			metrics.Auth("refresh", "rejected")
			return nil, ErrUnauthorized
		}
		metrics.Auth("refresh", "error")
		return nil, err
	}
	metrics.Auth("refresh", "ok")
	return pair, nil
}

func (s *Service) onReuse(ctx context.Context, userID uuid.UUID) {
	metrics.Auth("refresh", "reuse")
	s.Log.Warn("stale refresh token presented",
		zap.String("user_id", userID.String()),
		zap.Bool("revoked", s.RevokeOnReuse),
	)
	if s.RevokeOnReuse {
		if err := s.Store.SetRefreshHash(ctx, userID, nil); err != nil {
			s.Log.Error("revoke session after refresh reuse", zap.Error(err))
		}
	}
	s.publish(ctx, notify.SubjectRefreshReuse, map[string]any{"userId": userID.String(), "revoked": s.RevokeOnReuse})
}

func (s *Service) publish(ctx context.Context, subject string, data any) {
	if err := s.Events.Publish(ctx, notify.NewEvent(subject, data)); err != nil {
		s.Log.Warn("publish event", zap.String("subject", subject), zap.Error(err))
	}
}
