package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"recon-backend/internal/database"
	"strings"

	"github.com/klauspost/compress/zip"
)

// Finder adds resource fork entries under this prefix when zipping on macOS.
const macosMetadataDir = "__MACOSX/"

// PointCloudIntake accepts a zip holding exactly one .ply file, saves the
// file into its directory and registers it. The extracted file may not exceed
// maxExtractedBytes.
type PointCloudIntake struct {
	registry          *ModelRegistry
	plyDir            string
	maxExtractedBytes int64
}

func NewPointCloudIntake(registry *ModelRegistry, plyDir string, maxExtractedBytes int64) *PointCloudIntake {
	return &PointCloudIntake{registry: registry, plyDir: plyDir, maxExtractedBytes: maxExtractedBytes}
}

func (p *PointCloudIntake) Process(ctx context.Context, data []byte) (*database.StoredModel, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, WrapError(ArchiveFailed, err, "failed to read uploaded zip")
	}

	var plys []*zip.File
	files := 0
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasPrefix(filepath.ToSlash(f.Name), macosMetadataDir) {
			continue
		}
		files++
		if !strings.EqualFold(path.Ext(f.Name), PlyExtension) {
			return nil, Errorf(UnsupportedArchiveEntry, "unsupported file %s in zip", f.Name)
		}
		plys = append(plys, f)
	}

	if files == 0 {
		return nil, Errorf(EmptyArchive, "uploaded zip has no files")
	}

	if len(plys) > 1 {
		return nil, Errorf(UnsupportedArchiveEntry, "expected a single %s file, zip has %d", PlyExtension, len(plys))
	}

	entry := plys[0]
	if p.maxExtractedBytes > 0 && entry.UncompressedSize64 > uint64(p.maxExtractedBytes) {
		return nil, Errorf(TooLarge, "zip entry %s is %d bytes uncompressed, limit is %d", entry.Name, entry.UncompressedSize64, p.maxExtractedBytes)
	}

	// Only the base name is used so entries cannot be written outside plyDir.
	name := unsafeNameChars.ReplaceAllString(path.Base(filepath.ToSlash(entry.Name)), "_")

	localPath, err := p.extract(entry, name)
	if err != nil {
		return nil, err
	}

	slog.Info("extracted point cloud from zip", "entry", entry.Name, "path", localPath)

	return p.registry.RegisterUpload(ctx, localPath)
}

func (p *PointCloudIntake) extract(entry *zip.File, name string) (string, error) {
	if err := os.MkdirAll(p.plyDir, os.ModePerm); err != nil {
		return "", WrapError(ArchiveWriteFailed, err, "failed to create directory %s", p.plyDir)
	}

	src, err := entry.Open()
	if err != nil {
		return "", WrapError(ArchiveFailed, err, "failed to open zip entry %s", entry.Name)
	}
	defer src.Close()

	localPath := filepath.Join(p.plyDir, name)
	dst, err := os.Create(localPath)
	if err != nil {
		return "", WrapError(ArchiveWriteFailed, err, "failed to create %s", localPath)
	}

	// The header size is not trusted, the copy itself stops one byte past the
	// limit.
	var reader io.Reader = src
	if p.maxExtractedBytes > 0 {
		reader = io.LimitReader(src, p.maxExtractedBytes+1)
	}

	n, err := io.Copy(dst, reader)
	if err != nil {
		dst.Close()
		removePartial(localPath)
		return "", WrapError(ArchiveFailed, err, "failed to extract zip entry %s", entry.Name)
	}

	if err := dst.Close(); err != nil {
		removePartial(localPath)
		return "", WrapError(ArchiveWriteFailed, fmt.Errorf("closing %s: %w", localPath, err), "failed to write %s", localPath)
	}

	if p.maxExtractedBytes > 0 && n > p.maxExtractedBytes {
		removePartial(localPath)
		return "", Errorf(TooLarge, "zip entry %s exceeds %d bytes when extracted", entry.Name, p.maxExtractedBytes)
	}

	return localPath, nil
}

func removePartial(file string) {
	if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove partially extracted file", "path", file, "error", err)
	}
}
