package auth

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/KromaEnergia/api-guias/internal/apperr"
	"github.com/KromaEnergia/api-guias/internal/models"
	"github.com/KromaEnergia/api-guias/internal/utils"
	"github.com/google/uuid"
)

type ctxKey string

const principalKey ctxKey = "principal"

// Principal is the identity decoded from a verified access token.
type Principal struct {
	ID    uuid.UUID
	Email string
	Role  models.Role
}

func (p Principal) IsAdmin() bool { return p.Role == models.RoleAdmin }

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// AccessVerifier validates an access token and returns its claims.
type AccessVerifier interface {
	ParseAccessToken(raw string) (*Claims, error)
}

var (
	errMissingBearer = apperr.New(apperr.Unauthorized, "missing bearer token")
	errForbidden     = apperr.New(apperr.Forbidden, "forbidden")
)

// Authenticate rejects requests without a valid bearer access token and
// stores the caller's Principal in the request context.
func Authenticate(v AccessVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			raw, ok := bearerToken(r)
			if !ok {
				utils.Error(w, errMissingBearer)
				return
			}
			claims, err := v.ParseAccessToken(raw)
			if err != nil {
				utils.Error(w, ErrInvalidToken)
				return
			}
			id, err := uuid.Parse(claims.Subject)
			if err != nil || !claims.Role.Valid() {
				utils.Error(w, ErrInvalidToken)
				return
			}
			ctx := WithPrincipal(r.Context(), Principal{ID: id, Email: claims.Email, Role: claims.Role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole lets the request through only when the authenticated role is
// one of roles. It must run after Authenticate.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				utils.Error(w, errMissingBearer)
				return
			}
			if !slices.Contains(roles, p.Role) {
				utils.Error(w, errForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSelfOrAdmin checks that the caller is acting on their own account
// or is an admin.
func RequireSelfOrAdmin(ctx context.Context, userID uuid.UUID) (Principal, error) {
	p, ok := PrincipalFrom(ctx)
	if !ok {
		return Principal{}, errMissingBearer
	}
	if p.ID != userID && !p.IsAdmin() {
		return Principal{}, errForbidden
	}
	return p, nil
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
