package user

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/KromaEnergia/api-guias/internal/apperr"
	"github.com/KromaEnergia/api-guias/internal/auth"
	"github.com/KromaEnergia/api-guias/internal/models"
	"github.com/KromaEnergia/api-guias/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func (m *memRepo) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memRepo) UpdateProfile(_ context.Context, id uuid.UUID, c ProfileChanges) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if c.Email != nil {
		for otherID, other := range m.users {
			if otherID != id && other.Email == *c.Email {
				return nil, apperr.ErrDuplicate
			}
		}
		u.Email = *c.Email
	}
	if c.Name != nil {
		u.Name = c.Name
	}
	u.UpdatedAt = time.Now()
	cp := *u
	return &cp, nil
}

func (m *memRepo) SetPhoto(_ context.Context, id uuid.UUID, url *string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	u.ProfilePhoto = url
	cp := *u
	return &cp, nil
}

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR-rest-of-image")

type fixture struct {
	h     *Handler
	repo  *memRepo
	root  string
	ana   *models.User
	other *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	hash := "secret-hash"
	ana := &models.User{ID: uuid.New(), Email: "ana@example.com", Password: "bcrypt", Role: models.RoleUser, RefreshTokenHash: &hash}
	other := &models.User{ID: uuid.New(), Email: "bob@example.com", Role: models.RoleUser}
	repo := &memRepo{users: map[uuid.UUID]*models.User{ana.ID: ana, other.ID: other}}

	root := t.TempDir()
	disk, err := storage.NewDisk(root, storage.DiskURLPrefix)
	require.NoError(t, err)
	return &fixture{h: NewHandler(repo, disk, 1<<20, nil), repo: repo, root: root, ana: ana, other: other}
}

func as(u *models.User, req *http.Request) *http.Request {
	ctx := auth.WithPrincipal(req.Context(), auth.Principal{ID: u.ID, Email: u.Email, Role: u.Role})
	return req.WithContext(ctx)
}

func photoRequest(t *testing.T, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "me.png")
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPatch, "/api/users/me/photo", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestMe_HidesSecrets(t *testing.T) {
	f := newFixture(t)
	rr := httptest.NewRecorder()
	f.h.Me(rr, as(f.ana, httptest.NewRequest(http.MethodGet, "/api/users/me", nil)))

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.NotContains(t, body, "secret-hash")
	assert.NotContains(t, body, "bcrypt")
	assert.NotContains(t, body, "password")

	var got UserResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, f.ana.ID, got.ID)
	assert.Equal(t, models.RoleUser, got.Role)
}

func TestMe_WithoutPrincipal(t *testing.T) {
	f := newFixture(t)
	rr := httptest.NewRecorder()
	f.h.Me(rr, httptest.NewRequest(http.MethodGet, "/api/users/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestUpdateMe(t *testing.T) {
	f := newFixture(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/api/users/me", strings.NewReader(`{"name":"Ana Maria","email":" ANA.M@example.com "}`))
	f.h.UpdateMe(rr, as(f.ana, req))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var got UserResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "ana.m@example.com", got.Email)
	require.NotNil(t, got.Name)
	assert.Equal(t, "Ana Maria", *got.Name)

	t.Run("email taken", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPatch, "/api/users/me", strings.NewReader(`{"email":"bob@example.com"}`))
		f.h.UpdateMe(rr, as(f.ana, req))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "email already in use")
	})

	t.Run("role cannot be changed", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPatch, "/api/users/me", strings.NewReader(`{"role":"admin"}`))
		f.h.UpdateMe(rr, as(f.ana, req))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestPhotoLifecycle(t *testing.T) {
	f := newFixture(t)

	rr := httptest.NewRecorder()
	f.h.UploadPhoto(rr, as(f.ana, photoRequest(t, pngBytes)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var first UserResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &first))
	require.NotNil(t, first.ProfilePhoto)
	assert.True(t, strings.HasPrefix(*first.ProfilePhoto, "/uploads/profile/"))
	firstPath := filepath.Join(f.root, strings.TrimPrefix(*first.ProfilePhoto, "/uploads/"))
	assert.FileExists(t, firstPath)

	// replacing removes the old file
	rr = httptest.NewRecorder()
	f.h.UploadPhoto(rr, as(f.ana, photoRequest(t, pngBytes)))
	require.Equal(t, http.StatusOK, rr.Code)
	var second UserResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &second))
	assert.NotEqual(t, *first.ProfilePhoto, *second.ProfilePhoto)
	assert.NoFileExists(t, firstPath)

	rr = httptest.NewRecorder()
	f.h.DeletePhoto(rr, as(f.ana, httptest.NewRequest(http.MethodDelete, "/api/users/me/photo", nil)))
	require.Equal(t, http.StatusOK, rr.Code)
	var cleared UserResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &cleared))
	assert.Nil(t, cleared.ProfilePhoto)

	_, err := os.Stat(filepath.Join(f.root, strings.TrimPrefix(*second.ProfilePhoto, "/uploads/")))
	assert.True(t, os.IsNotExist(err))
}

func TestUploadPhoto_RejectsNonImages(t *testing.T) {
	f := newFixture(t)
	rr := httptest.NewRecorder()
	f.h.UploadPhoto(rr, as(f.ana, photoRequest(t, []byte("#!/bin/sh\necho hi\n"))))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	u, err := f.repo.FindByID(context.Background(), f.ana.ID)
	require.NoError(t, err)
	assert.Nil(t, u.ProfilePhoto)
}

func TestMe_DeletedUser(t *testing.T) {
	f := newFixture(t)
	ghost := &models.User{ID: uuid.New(), Role: models.RoleUser}
	rr := httptest.NewRecorder()
	f.h.Me(rr, as(ghost, httptest.NewRequest(http.MethodGet, "/api/users/me", nil)))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "user not found")
}
