package database

import (
	"time"

	"github.com/google/uuid"
)

// StoredModel is the registry row for a point cloud blob in the object store.
// Name is the object key.
type StoredModel struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"not null;uniqueIndex:idx_models_name"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (StoredModel) TableName() string {
	return "models"
}
