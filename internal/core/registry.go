package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"recon-backend/internal/database"
	"recon-backend/internal/storage"
	"regexp"
	"time"

	"gorm.io/gorm"
)

const (
	PlyExtension       = ".ply"
	PlyContentType     = "application/octet-stream"
	DefaultMaxNameSize = 255
)

var unsafeNameChars = regexp.MustCompile(`[^\w\-.]+`)

// ModelRegistry stores point cloud blobs in the object store and records each
// one in the models table. The two are not written transactionally: the blob
// is always put first, so a failed insert leaves an orphaned blob but a row
// never points at a missing blob.
type ModelRegistry struct {
	store         storage.ObjectStore
	db            *gorm.DB
	maxNameLength int
	now           func() time.Time
}

func NewModelRegistry(store storage.ObjectStore, db *gorm.DB, maxNameLength int) *ModelRegistry {
	if maxNameLength <= 0 {
		maxNameLength = DefaultMaxNameSize
	}
	return &ModelRegistry{store: store, db: db, maxNameLength: maxNameLength, now: time.Now}
}

func (r *ModelRegistry) EnsureBucket(ctx context.Context) error {
	if err := r.store.CreateBucket(ctx); err != nil {
		return WrapError(StoreFailure, err, "failed to create model bucket")
	}
	return nil
}

// Fetch returns the contents of the named model. The caller must close the
// returned reader.
func (r *ModelRegistry) Fetch(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ValidateObjectName(name, PlyExtension, r.maxNameLength); err != nil {
		return nil, err
	}

	obj, err := r.store.GetObject(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, WrapError(FileNotFound, err, "model %s not found", name)
		}
		return nil, WrapError(StoreFailure, err, "failed to fetch model %s", name)
	}

	return obj, nil
}

// ListAll returns the keys from a single listing of the model bucket.
func (r *ModelRegistry) ListAll(ctx context.Context) ([]string, error) {
	result, err := r.store.ListObjects(ctx)
	if err != nil {
		return nil, WrapError(StoreFailure, err, "failed to list models")
	}

	if result.Truncated {
		slog.Warn("model listing is truncated, only the first page is returned", "keys", len(result.Keys))
	}

	keys := make([]string, 0, len(result.Keys))
	for _, key := range result.Keys {
		if key != "" {
			keys = append(keys, key)
		}
	}

	return keys, nil
}

func (r *ModelRegistry) ListRegistered(ctx context.Context) ([]database.StoredModel, error) {
	models, err := database.ListStoredModels(ctx, r.db)
	if err != nil {
		return nil, WrapError(StoreFailure, err, "failed to list registered models")
	}
	return models, nil
}

func storedName(t time.Time, localPath string) string {
	base := unsafeNameChars.ReplaceAllString(filepath.Base(localPath), "_")
	return fmt.Sprintf("%d_%s", t.UnixMilli(), base)
}

// RegisterUpload copies the file at localPath into the object store under a
// timestamp prefixed name and then records it in the registry.
func (r *ModelRegistry) RegisterUpload(ctx context.Context, localPath string) (*database.StoredModel, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return nil, WrapError(SourceMissing, err, "failed to read %s", localPath)
	}

	now := r.now()
	name := storedName(now, localPath)
	if len(name) > r.maxNameLength {
		return nil, Errorf(InvalidFilename, "model name %s exceeds %d characters", name, r.maxNameLength)
	}

	if err := r.store.PutObject(ctx, name, bytes.NewReader(data), PlyContentType); err != nil {
		return nil, WrapError(StoreFailure, err, "failed to upload model %s", name)
	}

	model, err := database.CreateStoredModel(ctx, r.db, name, now)
	if err != nil {
		slog.Error("model blob was stored but registry insert failed, blob is orphaned", "name", name, "error", err)
		return nil, WrapError(StoreFailure, err, "failed to register model %s", name)
	}

	slog.Info("model registered", "name", name, "id", model.Id, "bytes", len(data))

	return model, nil
}
