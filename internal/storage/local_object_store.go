package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// LocalObjectStore keeps objects as files under a base directory. It is used
// for development setups without an S3 endpoint.
type LocalObjectStore struct {
	baseDir string
}

var _ ObjectStore = (*LocalObjectStore)(nil)

func NewLocalObjectStore(dir string) (*LocalObjectStore, error) {
	baseDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for %s: %w", dir, err)
	}

	return &LocalObjectStore{baseDir: baseDir}, nil
}

func (s *LocalObjectStore) CreateBucket(ctx context.Context) error {
	if err := os.MkdirAll(s.baseDir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create storage directory %s: %w", s.baseDir, err)
	}
	return nil
}

func (s *LocalObjectStore) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := localStorageFullpath(s.baseDir, key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s/%s: %w", s.baseDir, key, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("failed to open %s/%s: %w", s.baseDir, key, err)
	}

	return file, nil
}

func (s *LocalObjectStore) ListObjects(ctx context.Context) (ListResult, error) {
	var result ListResult

	err := filepath.WalkDir(s.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(s.baseDir, path)
		if err != nil {
			return err
		}
		result.Keys = append(result.Keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return ListResult{}, nil
		}
		return ListResult{}, fmt.Errorf("failed to list objects in %s: %w", s.baseDir, err)
	}

	sort.Strings(result.Keys)

	return result, nil
}

func (s *LocalObjectStore) PutObject(ctx context.Context, key string, data io.Reader, contentType string) error {
	path, err := localStorageFullpath(s.baseDir, key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create directory for %s/%s: %w", s.baseDir, key, err)
	}

	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file %s/%s: %w", s.baseDir, key, err)
	}

	if _, err := io.Copy(dst, data); err != nil {
		dst.Close()
		removePartial(path)
		return fmt.Errorf("failed to write file %s/%s: %w", s.baseDir, key, err)
	}

	if err := dst.Close(); err != nil {
		removePartial(path)
		return fmt.Errorf("failed to close file %s/%s: %w", s.baseDir, key, err)
	}

	return nil
}

// removePartial drops a file whose write did not complete so it is never
// listed or served.
func removePartial(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove partially written object", "path", path, "error", err)
	}
}
