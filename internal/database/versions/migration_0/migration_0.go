package migration_0

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type StoredModel struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (StoredModel) TableName() string {
	return "models"
}

func Migration(db *gorm.DB) error {
	return db.AutoMigrate(&StoredModel{})
}
