package core

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildZip(t *testing.T, files map[string]string, dirs ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, dir := range dirs {
		_, err := zw.Create(dir + "/")
		require.NoError(t, err)
	}
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func newTestIntake(t *testing.T) (*PointCloudIntake, *memoryStore, string) {
	store := newMemoryStore()
	registry := NewModelRegistry(store, createDB(t), 255)
	registry.now = func() time.Time { return time.UnixMilli(1700000000000) }
	plyDir := filepath.Join(t.TempDir(), "ply")
	return NewPointCloudIntake(registry, plyDir, 1024), store, plyDir
}

func TestPointCloudIntake(t *testing.T) {
	intake, store, plyDir := newTestIntake(t)

	data := buildZip(t, map[string]string{"scan/model.ply": "ply data"}, "scan")

	model, err := intake.Process(context.Background(), data)
	require.NoError(t, err)

	assert.Equal(t, "1700000000000_model.ply", model.Name)
	assert.Equal(t, []byte("ply data"), store.objects[model.Name])

	saved, err := os.ReadFile(filepath.Join(plyDir, "model.ply"))
	require.NoError(t, err)
	assert.Equal(t, "ply data", string(saved))
}

func TestPointCloudIntakeRejects(t *testing.T) {
	for _, tc := range []struct {
		name string
		data []byte
		kind ErrorKind
	}{
		{name: "corrupt", data: []byte("not a zip"), kind: ArchiveFailed},
		{name: "empty", data: buildZip(t, nil), kind: EmptyArchive},
		{name: "only dirs", data: buildZip(t, nil, "a", "b"), kind: EmptyArchive},
		{name: "two ply files", data: buildZip(t, map[string]string{"a.ply": "a", "b.ply": "b"}), kind: UnsupportedArchiveEntry},
		{name: "not ply", data: buildZip(t, map[string]string{"model.obj": "o"}), kind: UnsupportedArchiveEntry},
	} {
		t.Run(tc.name, func(t *testing.T) {
			intake, store, _ := newTestIntake(t)

			_, err := intake.Process(context.Background(), tc.data)
			assert.Equal(t, tc.kind, KindOf(err))
			assert.Empty(t, store.objects)
		})
	}
}

func TestPointCloudIntakeStripsEntryPath(t *testing.T) {
	intake, _, plyDir := newTestIntake(t)

	_, err := intake.Process(context.Background(), buildZip(t, map[string]string{"../../evil.ply": "x"}))
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(plyDir, "evil.ply"))
	assert.NoFileExists(t, filepath.Join(filepath.Dir(filepath.Dir(plyDir)), "evil.ply"))
}

func TestPointCloudIntakeRejectsOversizedEntry(t *testing.T) {
	intake, store, plyDir := newTestIntake(t)

	// Compresses to a few bytes, well under any upload limit.
	data := buildZip(t, map[string]string{"model.ply": strings.Repeat("\x00", 1<<20)})
	require.Less(t, len(data), 4096)

	_, err := intake.Process(context.Background(), data)
	assert.Equal(t, TooLarge, KindOf(err))
	assert.Empty(t, store.objects)
	assert.NoFileExists(t, filepath.Join(plyDir, "model.ply"))
}

func TestPointCloudIntakeLimitsCopiedBytes(t *testing.T) {
	intake, store, plyDir := newTestIntake(t)

	// extract is called directly so only the copy limit applies, as for an
	// entry whose header understates its size.
	data := buildZip(t, map[string]string{"model.ply": strings.Repeat("a", 2048)})
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	_, err = intake.extract(zr.File[0], "model.ply")
	assert.Equal(t, TooLarge, KindOf(err))
	assert.Empty(t, store.objects)
	assert.NoFileExists(t, filepath.Join(plyDir, "model.ply"))
}

func TestPointCloudIntakeSkipsMacOSMetadata(t *testing.T) {
	intake, store, _ := newTestIntake(t)

	data := buildZip(t, map[string]string{
		"model.ply":            "ply data",
		"__MACOSX/._model.ply": "resource fork",
	}, "__MACOSX")

	model, err := intake.Process(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, []byte("ply data"), store.objects[model.Name])
}

func TestPointCloudIntakeRejectsExtraFile(t *testing.T) {
	intake, store, _ := newTestIntake(t)

	_, err := intake.Process(context.Background(), buildZip(t, map[string]string{"model.ply": "p", "notes.txt": "n"}))
	assert.Equal(t, UnsupportedArchiveEntry, KindOf(err))
	assert.Empty(t, store.objects)
}
