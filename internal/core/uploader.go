package core

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-resty/resty/v2"
)

type UploadMode string

const (
	UploadRaw       UploadMode = "raw"
	UploadMultipart UploadMode = "multipart"
)

// RemoteUploader posts an archive to the reconstruction service. It makes
// exactly one attempt per call.
type RemoteUploader struct {
	client *resty.Client
	mode   UploadMode
}

func NewRemoteUploader(mode UploadMode) *RemoteUploader {
	return &RemoteUploader{client: resty.New(), mode: mode}
}

func (u *RemoteUploader) Upload(ctx context.Context, archivePath, url string) (json.RawMessage, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return nil, WrapError(SourceMissing, err, "failed to open archive %s", archivePath)
	}
	defer file.Close()

	req := u.client.R().SetContext(ctx).SetHeader("Accept", "application/json")

	switch u.mode {
	case UploadMultipart:
		req = req.SetFileReader("file", filepath.Base(archivePath), file)
	default:
		req = req.
			SetHeader("Content-Type", "application/zip").
			SetContentLength(true).
			SetBody(file)
	}

	res, err := req.Post(url)
	if err != nil {
		slog.Error("unable to upload archive", "url", url, "error", err)
		return nil, WrapError(UploadFailed, err, "failed to upload zip")
	}

	if !res.IsSuccess() {
		slog.Error("reconstruction service returned error", "url", url, "status_code", res.StatusCode(), "body", truncate(res.String(), 512))
		return nil, Errorf(UploadFailed, "failed to upload zip: %s", res.Status())
	}

	body := res.Body()
	if !json.Valid(body) {
		encoded, err := json.Marshal(string(body))
		if err != nil {
			return nil, WrapError(UploadFailed, err, "failed to encode upload response")
		}
		body = encoded
	}

	slog.Info("archive uploaded", "archive", archivePath, "url", url, "status_code", res.StatusCode())

	return json.RawMessage(body), nil
}
