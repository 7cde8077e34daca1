// Package storage keeps uploaded media either on local disk or in an
// S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/KromaEnergia/api-guias/internal/config"
	"github.com/google/uuid"
)

var ErrInvalidKey = errors.New("invalid object key")

// Storage saves objects under a key and returns the public URL they are
// served from.
type Storage interface {
	Save(ctx context.Context, key, contentType string, r io.Reader, size int64) (string, error)
	Delete(ctx context.Context, key string) error
	// KeyFromURL reverses Save's URL. ok is false for URLs this backend
	// did not produce.
	KeyFromURL(url string) (key string, ok bool)
}

// New builds the backend selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Driver {
	case "", "disk":
		return NewDisk(cfg.UploadDir, DiskURLPrefix)
	case "s3":
		return NewS3(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// NewKey returns a unique key under prefix keeping ext, e.g.
// "guides/6f1c...b11.jpg".
func NewKey(prefix, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return path.Join(prefix, uuid.NewString()+strings.ToLower(ext))
}

func cleanKey(key string) (string, error) {
	key = strings.TrimPrefix(path.Clean("/"+key), "/")
	if key == "" || key == "." || strings.Contains(key, "..") {
		return "", ErrInvalidKey
	}
	return key, nil
}
