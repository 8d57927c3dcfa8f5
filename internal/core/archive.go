package core

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// trackingWriter remembers the first error returned by the destination file
// so that write failures can be told apart from failures inside the zip
// writer.
type trackingWriter struct {
	w   io.Writer
	err error
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err != nil && t.err == nil {
		t.err = err
	}
	return n, err
}

// ArchiveDir writes every regular file under srcDir into a single zip at
// destPath using maximum deflate compression. It returns only once destPath
// has been synced and closed.
func ArchiveDir(srcDir, destPath string) (int, error) {
	info, err := os.Stat(srcDir)
	if err != nil || !info.IsDir() {
		if err == nil {
			err = fmt.Errorf("%s is not a directory", srcDir)
		}
		return 0, WrapError(SourceMissing, err, "archive source %s is missing", srcDir)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), os.ModePerm); err != nil {
		return 0, WrapError(ArchiveWriteFailed, err, "failed to create directory for %s", destPath)
	}

	file, err := os.Create(destPath)
	if err != nil {
		return 0, WrapError(ArchiveWriteFailed, err, "failed to create archive %s", destPath)
	}

	tw := &trackingWriter{w: file}
	zw := zip.NewWriter(tw)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	count, err := addDirToZip(zw, srcDir)
	if err == nil {
		err = zw.Close()
	}
	if err != nil {
		file.Close()
		if tw.err != nil {
			return 0, WrapError(ArchiveWriteFailed, tw.err, "failed to write archive %s", destPath)
		}
		return 0, WrapError(ArchiveFailed, err, "failed to build archive %s", destPath)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		return 0, WrapError(ArchiveWriteFailed, err, "failed to flush archive %s", destPath)
	}

	if err := file.Close(); err != nil {
		return 0, WrapError(ArchiveWriteFailed, err, "failed to close archive %s", destPath)
	}

	slog.Info("archive created", "source", srcDir, "archive", destPath, "entries", count)

	return count, nil
}

func addDirToZip(zw *zip.Writer, srcDir string) (int, error) {
	count := 0
	err := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		header.Method = zip.Deflate

		w, err := zw.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("error creating zip entry for %s: %w", rel, err)
		}

		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()

		if _, err := io.Copy(w, src); err != nil {
			return fmt.Errorf("error writing zip entry for %s: %w", rel, err)
		}

		count++
		return nil
	})
	return count, err
}

// ListArchive returns the names of the file entries in the archive at path.
func ListArchive(path string) ([]string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, WrapError(ArchiveFailed, err, "failed to open archive %s", path)
	}
	defer r.Close()

	var names []string
	for _, f := range r.File {
		if !f.FileInfo().IsDir() {
			names = append(names, f.Name)
		}
	}
	return names, nil
}
