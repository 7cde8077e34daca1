// Package media receives multipart uploads, checks that they are images or
// videos by their content and hands them to storage.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/KromaEnergia/api-guias/internal/apperr"
	"github.com/KromaEnergia/api-guias/internal/models"
	"github.com/KromaEnergia/api-guias/internal/storage"
)

const sniffLen = 512

// accepted maps sniffed content types to the media type and file extension
// they are stored with.
var accepted = map[string]struct {
	media models.MediaType
	ext   string
}{
	"image/jpeg":      {models.MediaPhoto, ".jpg"},
	"image/png":       {models.MediaPhoto, ".png"},
	"image/gif":       {models.MediaPhoto, ".gif"},
	"image/webp":      {models.MediaPhoto, ".webp"},
	"video/mp4":       {models.MediaVideo, ".mp4"},
	"video/webm":      {models.MediaVideo, ".webm"},
	"application/ogg": {models.MediaVideo, ".ogv"},
	"video/quicktime": {models.MediaVideo, ".mov"},
}

var (
	ErrMissingFile = apperr.New(apperr.BadRequest, "field 'file' is required")
	ErrTooLarge    = apperr.New(apperr.BadRequest, "file is too large")
	ErrUnsupported = apperr.New(apperr.BadRequest, "only images and videos are allowed")
)

// Upload is a received file whose type has been verified.
type Upload struct {
	Body        io.Reader
	Size        int64
	ContentType string
	MediaType   models.MediaType
	Ext         string
	closer      io.Closer
}

func (u *Upload) Close() error { return u.closer.Close() }

// Receive reads the "file" part of a multipart request no larger than
// maxBytes. When only is non-empty the upload must be of that media type.
func Receive(w http.ResponseWriter, r *http.Request, maxBytes int64, only models.MediaType) (*Upload, error) {
	// allow for multipart framing around the file itself
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, ErrTooLarge
		}
		return nil, apperr.Wrap(apperr.BadRequest, "invalid multipart form", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, ErrMissingFile
	}
	if header.Size > maxBytes {
		file.Close()
		return nil, ErrTooLarge
	}
	up, err := sniff(file, header)
	if err != nil {
		file.Close()
		return nil, err
	}
	if only != "" && up.MediaType != only {
		file.Close()
		return nil, apperr.New(apperr.BadRequest, fmt.Sprintf("file must be a %s", only))
	}
	return up, nil
}

func sniff(file multipart.File, header *multipart.FileHeader) (*Upload, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, apperr.Wrap(apperr.BadRequest, "cannot read file", err)
	}
	head = head[:n]

	ct := DetectContentType(head)
	kind, ok := accepted[ct]
	if !ok {
		return nil, ErrUnsupported
	}
	return &Upload{
		Body:        io.MultiReader(bytes.NewReader(head), file),
		Size:        header.Size,
		ContentType: ct,
		MediaType:   kind.media,
		Ext:         kind.ext,
		closer:      file,
	}, nil
}

// DetectContentType extends http.DetectContentType with QuickTime movies,
// which the standard sniffer reports as application/octet-stream.
func DetectContentType(head []byte) string {
	if len(head) >= 12 && string(head[4:8]) == "ftyp" && string(head[8:12]) == "qt  " {
		return "video/quicktime"
	}
	return http.DetectContentType(head)
}

// Save stores up under prefix and returns its public URL.
func Save(ctx context.Context, store storage.Storage, prefix string, up *Upload) (string, error) {
	key := storage.NewKey(prefix, up.Ext)
	url, err := store.Save(ctx, key, up.ContentType, up.Body, up.Size)
	if err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	return url, nil
}
