package database

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func isPostgresURL(url string) bool {
	return strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://")
}

// NewDatabase opens the registry database and applies all migrations. A
// postgres:// url selects postgres, anything else is treated as a sqlite path.
func NewDatabase(url string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if isPostgresURL(url) {
		log.Println("Connecting to postgres database...")
		dialector = postgres.Open(url)
	} else {
		if dir := filepath.Dir(url); dir != "." && !strings.HasPrefix(url, "file:") {
			if err := os.MkdirAll(dir, os.ModePerm); err != nil {
				return nil, fmt.Errorf("unable to create database directory %s: %w", dir, err)
			}
		}
		log.Printf("Opening sqlite database %s...", url)
		dialector = sqlite.Open(url)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := GetMigrator(db).Migrate(); err != nil {
		return nil, fmt.Errorf("unable to migrate database: %w", err)
	}

	log.Println("Database connection established.")
	return db, nil
}
