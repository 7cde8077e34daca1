package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/KromaEnergia/api-guias/internal/apperr"
	"github.com/KromaEnergia/api-guias/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrSigningKey is returned when a token secret is not configured.
var ErrSigningKey = errors.New("token signing secret is not configured")

var (
	ErrUnauthorized       = apperr.New(apperr.Unauthorized, "unauthorized")
	ErrInvalidCredentials = apperr.New(apperr.Unauthorized, "invalid credentials")
	ErrInvalidToken       = apperr.New(apperr.Unauthorized, "invalid or expired token")
	ErrEmailTaken         = apperr.New(apperr.BadRequest, "email already in use")

	// errRefreshMismatch marks a refresh token that is well formed but is not
	// the one whose hash is stored, i.e. a stale or replayed token.
	errRefreshMismatch = errors.New("refresh token does not match stored hash")
)

// CredentialStore persists users and their rotating refresh-token hash.
// Lookups return apperr.ErrNotFound for missing rows and Create returns
// apperr.ErrDuplicate when the email is taken.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
	// SetRefreshHash overwrites the stored hash; nil clears it.
	SetRefreshHash(ctx context.Context, id uuid.UUID, hash *string) error
	// SwapRefreshHash replaces the stored hash only if it still equals
	// expected. It reports whether the swap happened.
	SwapRefreshHash(ctx context.Context, id uuid.UUID, expected, next string) (bool, error)
}

type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Claims are carried by both access and refresh tokens. Subject is the user
// id and ID a random jti so two tokens minted in the same second differ.
type Claims struct {
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type TokenService struct {
	cfg   TokenConfig
	store CredentialStore
	now   func() time.Time
}

func NewTokenService(cfg TokenConfig, store CredentialStore) *TokenService {
	return &TokenService{cfg: cfg, store: store, now: time.Now}
}

// IssueTokenPair mints an access/refresh pair and overwrites the user's
// stored refresh hash, invalidating any refresh token issued before.
func (s *TokenService) IssueTokenPair(ctx context.Context, userID uuid.UUID, email string, role models.Role) (*TokenPair, error) {
	pair, hash, err := s.mint(userID, email, role)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetRefreshHash(ctx, userID, &hash); err != nil {
		return nil, fmt.Errorf("store refresh hash: %w", err)
	}
	return pair, nil
}

// RotateTokenPair mints a new pair for user and swaps the stored hash from
// expected to the new one in a single conditional update. Losing the race to
// a concurrent rotation yields ErrUnauthorized.
func (s *TokenService) RotateTokenPair(ctx context.Context, user *models.User, expected string) (*TokenPair, error) {
	pair, hash, err := s.mint(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}
	swapped, err := s.store.SwapRefreshHash(ctx, user.ID, expected, hash)
	if err != nil {
		return nil, fmt.Errorf("rotate refresh hash: %w", err)
	}
	if !swapped {
		return nil, apperr.Wrap(apperr.Unauthorized, ErrUnauthorized.Msg, errRefreshMismatch)
	}
	return pair, nil
}

// VerifyRefresh checks presented against the stored hash of userID. The
// returned user always has a non-nil RefreshTokenHash.
func (s *TokenService) VerifyRefresh(ctx context.Context, userID uuid.UUID, presented string) (*models.User, error) {
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if user.RefreshTokenHash == nil {
		return nil, ErrUnauthorized
	}
	got := HashRefreshToken(presented)
	if subtle.ConstantTimeCompare([]byte(got), []byte(*user.RefreshTokenHash)) != 1 {
		return nil, apperr.Wrap(apperr.Unauthorized, ErrUnauthorized.Msg, errRefreshMismatch)
	}
	return user, nil
}

// ParseAccessToken validates signature, algorithm and expiry of an access token.
func (s *TokenService) ParseAccessToken(raw string) (*Claims, error) {
	return s.parse(raw, s.cfg.AccessSecret)
}

// ParseRefreshToken validates a refresh token against the refresh secret.
func (s *TokenService) ParseRefreshToken(raw string) (*Claims, error) {
	return s.parse(raw, s.cfg.RefreshSecret)
}

func (s *TokenService) mint(userID uuid.UUID, email string, role models.Role) (*TokenPair, string, error) {
	access, err := s.sign(s.cfg.AccessSecret, s.cfg.AccessTTL, userID, email, role)
	if err != nil {
		return nil, "", fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := s.sign(s.cfg.RefreshSecret, s.cfg.RefreshTTL, userID, email, role)
	if err != nil {
		return nil, "", fmt.Errorf("sign refresh token: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, HashRefreshToken(refresh), nil
}

func (s *TokenService) sign(secret []byte, ttl time.Duration, userID uuid.UUID, email string, role models.Role) (string, error) {
	if len(secret) == 0 {
		return "", ErrSigningKey
	}
	now := s.now()
	claims := Claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (s *TokenService) parse(raw string, secret []byte) (*Claims, error) {
	if len(secret) == 0 {
		return nil, ErrSigningKey
	}
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.Unauthorized, ErrInvalidToken.Msg, err)
	}
	if !tok.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// HashRefreshToken is the one-way digest stored in place of a refresh token.
func HashRefreshToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(h[:])
}
