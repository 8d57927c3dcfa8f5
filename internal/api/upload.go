package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"recon-backend/internal/core"
)

// Multipart bodies carry boundaries and headers on top of the file itself.
const multipartOverhead = 1 << 20

const maxMemory = 32 << 20

type uploadedFile struct {
	Name      string
	MediaType string
	Data      []byte
}

// readUpload parses a multipart request and returns the single file in field
// once it has passed validation against rules. Nothing is read from the file
// before validation succeeds.
func readUpload(r *http.Request, field string, rules core.UploadRules) (*uploadedFile, error) {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, core.WrapError(core.TooLarge, err, "request body exceeds %d bytes", maxErr.Limit)
		}
		return nil, core.WrapError(core.MissingFile, err, "unable to parse multipart request")
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			slog.Warn("error removing multipart temp files", "error", err)
		}
	}()

	headers := r.MultipartForm.File[field]

	desc := core.UploadDescriptor{FileCount: len(headers)}
	if len(headers) > 0 {
		desc.MediaType = headers[0].Header.Get("Content-Type")
		desc.Size = headers[0].Size
	}

	if err := core.ValidateUpload(desc, rules); err != nil {
		return nil, err
	}

	header := headers[0]
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("error opening uploaded file %s: %w", header.Filename, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("error reading uploaded file %s: %w", header.Filename, err)
	}

	return &uploadedFile{Name: header.Filename, MediaType: desc.MediaType, Data: data}, nil
}
