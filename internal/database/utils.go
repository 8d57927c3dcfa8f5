package database

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func CreateStoredModel(ctx context.Context, txn *gorm.DB, name string, createdAt time.Time) (*StoredModel, error) {
	model := &StoredModel{
		Id:        uuid.New(),
		Name:      name,
		CreatedAt: createdAt.UTC(),
		UpdatedAt: createdAt.UTC(),
	}

	if err := txn.WithContext(ctx).Create(model).Error; err != nil {
		slog.Error("error creating model record", "name", name, "error", err)
		return nil, err
	}

	return model, nil
}

func ListStoredModels(ctx context.Context, txn *gorm.DB) ([]StoredModel, error) {
	var models []StoredModel
	if err := txn.WithContext(ctx).Order("created_at DESC").Find(&models).Error; err != nil {
		slog.Error("error listing model records", "error", err)
		return nil, err
	}
	return models, nil
}
