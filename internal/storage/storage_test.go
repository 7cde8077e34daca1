package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KromaEnergia/api-guias/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisk_SaveAndDelete(t *testing.T) {
	root := t.TempDir()
	d, err := NewDisk(root, "/uploads")
	require.NoError(t, err)
	ctx := context.Background()

	url, err := d.Save(ctx, "guides/a.jpg", "image/jpeg", strings.NewReader("jpeg-bytes"), 10)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/guides/a.jpg", url)

	data, err := os.ReadFile(filepath.Join(root, "guides", "a.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	key, ok := d.KeyFromURL(url)
	require.True(t, ok)
	assert.Equal(t, "guides/a.jpg", key)

	require.NoError(t, d.Delete(ctx, key))
	_, err = os.Stat(filepath.Join(root, "guides", "a.jpg"))
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, d.Delete(ctx, key), "deleting twice is fine")
}

func TestDisk_KeysStayInsideRoot(t *testing.T) {
	root := t.TempDir()
	d, err := NewDisk(root, DiskURLPrefix)
	require.NoError(t, err)

	url, err := d.Save(context.Background(), "../../etc/passwd", "", strings.NewReader("x"), 1)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/etc/passwd", url)
	_, err = os.Stat(filepath.Join(root, "etc", "passwd"))
	assert.NoError(t, err)

	_, err = d.Save(context.Background(), "", "", strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestDisk_SaveHonoursCancelledContext(t *testing.T) {
	d, err := NewDisk(t.TempDir(), DiskURLPrefix)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = d.Save(ctx, "a.bin", "", strings.NewReader("data"), 4)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestKeyFromURL_ForeignURL(t *testing.T) {
	d, err := NewDisk(t.TempDir(), DiskURLPrefix)
	require.NoError(t, err)
	_, ok := d.KeyFromURL("https://cdn.example.com/a.jpg")
	assert.False(t, ok)
}

func TestNewKey(t *testing.T) {
	k := NewKey("users/photos", "JPG")
	assert.True(t, strings.HasPrefix(k, "users/photos/"))
	assert.True(t, strings.HasSuffix(k, ".jpg"))
	assert.NotEqual(t, k, NewKey("users/photos", ".jpg"))
}

func TestPublicBaseURL(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com/", publicBaseURL("https://cdn.example.com/", "", "b", "r"))
	assert.Equal(t, "http://minio:9000/media/", publicBaseURL("", "http://minio:9000", "media", "us-east-1"))
	assert.Equal(t, "https://media.s3.eu-west-1.amazonaws.com/", publicBaseURL("", "", "media", "eu-west-1"))
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := New(context.Background(), config.StorageConfig{Driver: "ftp"})
	assert.Error(t, err)
}
