package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestObjectStore(t *testing.T) (*LocalObjectStore, string) {
	t.Helper()
	dir := t.TempDir()
	objectStore, err := NewLocalObjectStore(dir)
	require.NoError(t, err)
	return objectStore, dir
}

func TestLocalObjectStore_PutObject(t *testing.T) {
	objectStore, baseDir := setupTestObjectStore(t)

	key := "1700000000000_fused.ply"
	content := []byte("ply\nformat ascii 1.0\n")

	err := objectStore.PutObject(context.Background(), key, bytes.NewReader(content), "application/octet-stream")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(baseDir, key))
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestLocalObjectStore_GetObject(t *testing.T) {
	objectStore, _ := setupTestObjectStore(t)
	ctx := context.Background()

	require.NoError(t, objectStore.PutObject(ctx, "model.ply", bytes.NewReader([]byte("content")), "application/octet-stream"))

	r, err := objectStore.GetObject(ctx, "model.ply")
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
}

func TestLocalObjectStore_GetObjectNotFound(t *testing.T) {
	objectStore, _ := setupTestObjectStore(t)

	_, err := objectStore.GetObject(context.Background(), "missing.ply")
	assert.True(t, errors.Is(err, ErrObjectNotFound))
}

func TestLocalObjectStore_KeyEscape(t *testing.T) {
	objectStore, _ := setupTestObjectStore(t)

	_, err := objectStore.GetObject(context.Background(), "../../etc/passwd")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrObjectNotFound))

	err = objectStore.PutObject(context.Background(), "../outside.ply", bytes.NewReader(nil), "application/octet-stream")
	assert.Error(t, err)
}

func TestLocalObjectStore_ListObjects(t *testing.T) {
	objectStore, _ := setupTestObjectStore(t)
	ctx := context.Background()

	for _, key := range []string{"b.ply", "a.ply", "nested/c.ply"} {
		require.NoError(t, objectStore.PutObject(ctx, key, bytes.NewReader([]byte(key)), "application/octet-stream"))
	}

	result, err := objectStore.ListObjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.ply", "b.ply", "nested/c.ply"}, result.Keys)
	assert.False(t, result.Truncated)
}

func TestLocalObjectStore_ListObjectsMissingDir(t *testing.T) {
	objectStore, err := NewLocalObjectStore(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)

	result, err := objectStore.ListObjects(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Keys)
}

func TestLocalObjectStore_CreateBucket(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "models")
	objectStore, err := NewLocalObjectStore(dir)
	require.NoError(t, err)

	require.NoError(t, objectStore.CreateBucket(context.Background()))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestLocalObjectStore_PutObjectWriteFailure(t *testing.T) {
	objectStore, baseDir := setupTestObjectStore(t)
	ctx := context.Background()

	err := objectStore.PutObject(ctx, "broken.ply", io.MultiReader(bytes.NewReader([]byte("partial")), failingReader{}), "application/octet-stream")
	require.Error(t, err)

	assert.NoFileExists(t, filepath.Join(baseDir, "broken.ply"))

	res, err := objectStore.ListObjects(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Keys)
}
