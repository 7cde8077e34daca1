package media

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KromaEnergia/api-guias/internal/models"
	"github.com/KromaEnergia/api-guias/internal/storage"
	"github.com/KromaEnergia/api-guias/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func multipartRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestDetectContentType(t *testing.T) {
	mov := append([]byte{0, 0, 0, 0x14}, []byte("ftypqt  \x00\x00\x00\x00")...)
	assert.Equal(t, "video/quicktime", DetectContentType(mov))
	assert.Equal(t, "image/png", DetectContentType(pngHeader))
	assert.Equal(t, "text/plain; charset=utf-8", DetectContentType([]byte("hello")))
}

func TestUpload(t *testing.T) {
	root := t.TempDir()
	disk, err := storage.NewDisk(root, storage.DiskURLPrefix)
	require.NoError(t, err)
	h := NewHandler(disk, 1024, nil)

	content := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{1}, 100)...)
	rr := httptest.NewRecorder()
	h.Upload(rr, multipartRequest(t, "file", "photo.exe", content))

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var got UploadResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, models.MediaPhoto, got.MediaType)
	assert.True(t, strings.HasPrefix(got.URL, "/uploads/guides/"))
	assert.True(t, strings.HasSuffix(got.URL, ".png"), "extension comes from the sniffed type")

	key, ok := disk.KeyFromURL(got.URL)
	require.True(t, ok)
	stored, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(key)))
	require.NoError(t, err)
	assert.Equal(t, content, stored)
}

func TestUpload_Rejections(t *testing.T) {
	disk, err := storage.NewDisk(t.TempDir(), storage.DiskURLPrefix)
	require.NoError(t, err)
	h := NewHandler(disk, 64, nil)

	tests := []struct {
		name string
		req  *http.Request
		msg  string
	}{
		{"not media", multipartRequest(t, "file", "a.png", []byte("plain text pretending")), "only images and videos are allowed"},
		{"too large", multipartRequest(t, "file", "a.png", append(pngHeader, bytes.Repeat([]byte{0}, 100)...)), "file is too large"},
		{"wrong field", multipartRequest(t, "upload", "a.png", pngHeader), "field 'file' is required"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.Upload(rr, tc.req)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			var body utils.ErrorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tc.msg, body.Error)
		})
	}
}

func TestReceive_RestrictsMediaType(t *testing.T) {
	rr := httptest.NewRecorder()
	_, err := Receive(rr, multipartRequest(t, "file", "a.png", pngHeader), 1024, models.MediaVideo)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file must be a video")
}
