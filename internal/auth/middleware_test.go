package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/KromaEnergia/api-guias/internal/models"
	"github.com/KromaEnergia/api-guias/internal/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func principalEcho(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	utils.JSON(w, http.StatusOK, map[string]string{"id": p.ID.String(), "role": string(p.Role)})
}

func accessFor(t *testing.T, svc *TokenService, role models.Role) (string, uuid.UUID) {
	t.Helper()
	store := svc.store.(*memStore)
	u := &models.User{Email: uuid.NewString() + "@example.com", Role: role}
	require.NoError(t, store.Create(context.Background(), u))
	pair, err := svc.IssueTokenPair(context.Background(), u.ID, u.Email, u.Role)
	require.NoError(t, err)
	return pair.AccessToken, u.ID
}

func errorBody(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body utils.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body.Error
}

func TestAuthenticate(t *testing.T) {
	svc := NewTokenService(testTokenConfig(), newMemStore())
	h := Authenticate(svc)(http.HandlerFunc(principalEcho))
	token, id := accessFor(t, svc, models.RoleUser)

	expired := NewTokenService(testTokenConfig(), svc.store)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	stale, _ := accessFor(t, expired, models.RoleUser)

	foreign := NewTokenService(TokenConfig{
		AccessSecret:  []byte("other"),
		RefreshSecret: []byte("other-refresh"),
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	}, svc.store)
	forged, _ := accessFor(t, foreign, models.RoleAdmin)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
		{"malformed", "Bearer abc.def", http.StatusUnauthorized},
		{"expired", "Bearer " + stale, http.StatusUnauthorized},
		{"wrong secret", "Bearer " + forged, http.StatusUnauthorized},
		{"refresh token", "Bearer " + mustRefresh(t, svc, id), http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			require.Equal(t, tc.status, rr.Code)
			if tc.status == http.StatusUnauthorized {
				assert.NotEmpty(t, errorBody(t, rr))
				return
			}
			var got map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
			assert.Equal(t, id.String(), got["id"])
			assert.Equal(t, "user", got["role"])
		})
	}
}

func mustRefresh(t *testing.T, svc *TokenService, id uuid.UUID) string {
	t.Helper()
	u, err := svc.store.FindByID(context.Background(), id)
	require.NoError(t, err)
	pair, err := svc.IssueTokenPair(context.Background(), u.ID, u.Email, u.Role)
	require.NoError(t, err)
	return pair.RefreshToken
}

func TestAuthenticate_PassesPreflight(t *testing.T) {
	svc := NewTokenService(testTokenConfig(), newMemStore())
	h := Authenticate(svc)(http.HandlerFunc(principalEcho))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/api/guides", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestRequireRole(t *testing.T) {
	svc := NewTokenService(testTokenConfig(), newMemStore())
	h := Authenticate(svc)(RequireRole(models.RoleAdmin)(http.HandlerFunc(principalEcho)))
	userToken, _ := accessFor(t, svc, models.RoleUser)
	adminToken, _ := accessFor(t, svc, models.RoleAdmin)

	do := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/guides", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	rr := do(userToken)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "forbidden", errorBody(t, rr))

	assert.Equal(t, http.StatusOK, do(adminToken).Code)

	// without Authenticate in front there is no principal
	bare := RequireRole(models.RoleAdmin)(http.HandlerFunc(principalEcho))
	rr = httptest.NewRecorder()
	bare.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequireSelfOrAdmin(t *testing.T) {
	self := uuid.New()
	ctx := WithPrincipal(context.Background(), Principal{ID: self, Role: models.RoleUser})

	_, err := RequireSelfOrAdmin(ctx, self)
	assert.NoError(t, err)
	_, err = RequireSelfOrAdmin(ctx, uuid.New())
	assert.ErrorIs(t, err, errForbidden)

	admin := WithPrincipal(context.Background(), Principal{ID: uuid.New(), Role: models.RoleAdmin})
	_, err = RequireSelfOrAdmin(admin, self)
	assert.NoError(t, err)

	_, err = RequireSelfOrAdmin(context.Background(), self)
	assert.ErrorIs(t, err, errMissingBearer)
}
