package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type VideoUploadParams struct {
	FPS    float64 `schema:"fps"`
	Stride int     `schema:"stride"`
}

type VideoUploadResponse struct {
	Message string `json:"message"`
	Frames  int    `json:"frames,omitempty"`

	// Reconstruction is the reconstruction service's reply to the frame
	// archive upload.
	Reconstruction json.RawMessage `json:"reconstruction,omitempty"`
}

type PlyUploadResponse struct {
	Message string `json:"message"`
	Name    string `json:"name,omitempty"`
}

type StoredModel struct {
	Id        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
