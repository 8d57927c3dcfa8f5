package core

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"recon-backend/internal/database"
	"recon-backend/internal/storage"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type memoryStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	truncated bool
	putErr    error
	getErr    error
	listErr   error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (m *memoryStore) CreateBucket(ctx context.Context) error {
	return nil
}

func (m *memoryStore) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStore) ListObjects(ctx context.Context) (storage.ListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return storage.ListResult{}, m.listErr
	}
	result := storage.ListResult{Truncated: m.truncated}
	for key := range m.objects {
		result.Keys = append(result.Keys, key)
	}
	return result, nil
}

func (m *memoryStore) PutObject(ctx context.Context, key string, data io.Reader, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.objects[key] = b
	return nil
}

func createDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, database.GetMigrator(db).Migrate())

	return db
}

func countModels(t *testing.T, db *gorm.DB) int64 {
	var count int64
	require.NoError(t, db.Model(&database.StoredModel{}).Count(&count).Error)
	return count
}

func writePly(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fused.ply")
	require.NoError(t, os.WriteFile(path, []byte("ply\nend_header\n"), 0644))
	return path
}

func TestRegisterUpload(t *testing.T) {
	store := newMemoryStore()
	db := createDB(t)
	registry := NewModelRegistry(store, db, 255)
	registry.now = func() time.Time { return time.UnixMilli(1700000000000) }

	model, err := registry.RegisterUpload(context.Background(), writePly(t))
	require.NoError(t, err)

	assert.Equal(t, "1700000000000_fused.ply", model.Name)
	assert.Equal(t, []byte("ply\nend_header\n"), store.objects[model.Name])
	assert.Equal(t, int64(1), countModels(t, db))
}

func TestRegisterUploadPutFailureWritesNoRow(t *testing.T) {
	store := newMemoryStore()
	store.putErr = errors.New("connection reset")
	db := createDB(t)

	_, err := NewModelRegistry(store, db, 255).RegisterUpload(context.Background(), writePly(t))
	assert.Equal(t, StoreFailure, KindOf(err))
	assert.Equal(t, int64(0), countModels(t, db))
}

func TestRegisterUploadMissingFile(t *testing.T) {
	store := newMemoryStore()
	db := createDB(t)

	_, err := NewModelRegistry(store, db, 255).RegisterUpload(context.Background(), filepath.Join(t.TempDir(), "fused.ply"))
	assert.Equal(t, SourceMissing, KindOf(err))
	assert.Empty(t, store.objects)
	assert.Equal(t, int64(0), countModels(t, db))
}

func TestRegisterUploadInsertFailureLeavesBlob(t *testing.T) {
	store := newMemoryStore()
	db := createDB(t)
	registry := NewModelRegistry(store, db, 255)
	registry.now = func() time.Time { return time.UnixMilli(1700000000000) }

	path := writePly(t)
	_, err := registry.RegisterUpload(context.Background(), path)
	require.NoError(t, err)

	// Same timestamp and base name collides with the unique index.
	_, err = registry.RegisterUpload(context.Background(), path)
	assert.Equal(t, StoreFailure, KindOf(err))
	assert.Len(t, store.objects, 1)
	assert.Equal(t, int64(1), countModels(t, db))
}

func TestStoredNameSanitizesBaseName(t *testing.T) {
	name := storedName(time.UnixMilli(42), "/tmp/my model (1).ply")
	assert.Equal(t, "42_my_model_1_.ply", name)
}

func TestFetch(t *testing.T) {
	store := newMemoryStore()
	store.objects["model1.ply"] = []byte("data")
	registry := NewModelRegistry(store, createDB(t), 255)

	r, err := registry.Fetch(context.Background(), "model1.ply")
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))

	_, err = registry.Fetch(context.Background(), "model2.ply")
	assert.Equal(t, FileNotFound, KindOf(err))
}

func TestFetchValidatesName(t *testing.T) {
	store := newMemoryStore()
	store.getErr = errors.New("must not be called")
	registry := NewModelRegistry(store, createDB(t), 255)
	ctx := context.Background()

	for _, name := range []string{"../../etc/passwd", "model.txt", "a b.ply", strings.Repeat("x", 256) + ".ply"} {
		_, err := registry.Fetch(ctx, name)
		assert.Equal(t, InvalidFilename, KindOf(err), name)
	}

	_, err := registry.Fetch(ctx, "fused.ply")
	assert.Equal(t, StoreFailure, KindOf(err))
}

func TestListAll(t *testing.T) {
	store := newMemoryStore()
	store.objects["a.ply"] = nil
	store.objects["b.ply"] = nil
	store.truncated = true
	registry := NewModelRegistry(store, createDB(t), 255)

	keys, err := registry.ListAll(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.ply", "b.ply"}, keys)

	store.listErr = errors.New("access denied")
	_, err = registry.ListAll(context.Background())
	assert.Equal(t, StoreFailure, KindOf(err))
}

func TestListAllEmpty(t *testing.T) {
	keys, err := NewModelRegistry(newMemoryStore(), createDB(t), 255).ListAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, keys)
	assert.Empty(t, keys)
}
