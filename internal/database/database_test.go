package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestNewDatabaseSqlite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "recon.db")

	db, err := NewDatabase(path)
	require.NoError(t, err)
	assert.True(t, db.Migrator().HasTable(&StoredModel{}))

	// Reopening an already migrated database must not fail.
	db, err = NewDatabase(path)
	require.NoError(t, err)
	assert.True(t, db.Migrator().HasTable("models"))
}

func TestStoredModelNameIsUnique(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, GetMigrator(db).Migrate())

	ctx := context.Background()
	now := time.Now()

	_, err = CreateStoredModel(ctx, db, "1700000000000_fused.ply", now)
	require.NoError(t, err)

	_, err = CreateStoredModel(ctx, db, "1700000000000_fused.ply", now)
	assert.Error(t, err)

	_, err = CreateStoredModel(ctx, db, "1700000000001_fused.ply", now.Add(time.Second))
	require.NoError(t, err)

	models, err := ListStoredModels(ctx, db)
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "1700000000001_fused.ply", models[0].Name)
}

func TestMigrationRollback(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	migrator := GetMigrator(db)
	require.NoError(t, migrator.Migrate())

	assert.True(t, db.Migrator().HasIndex(&StoredModel{}, "idx_models_name"))

	require.NoError(t, migrator.RollbackLast())
	assert.False(t, db.Migrator().HasIndex(&StoredModel{}, "idx_models_name"))
}
