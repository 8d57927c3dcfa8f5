package api

import (
	"recon-backend/internal/database"
	"recon-backend/pkg/api"
)

func convertStoredModel(m database.StoredModel) api.StoredModel {
	return api.StoredModel{
		Id:        m.Id,
		Name:      m.Name,
		CreatedAt: m.CreatedAt,
	}
}

func convertStoredModels(ms []database.StoredModel) []api.StoredModel {
	models := make([]api.StoredModel, 0, len(ms))
	for _, m := range ms {
		models = append(models, convertStoredModel(m))
	}
	return models
}
