package api

import (
	"net/http"
	"recon-backend/internal/core"
)

// Client facing messages per endpoint. Kinds missing from a table get the
// endpoint's fallback message.
var (
	videoMessages = map[core.ErrorKind]string{
		core.MissingFile:           "No video file uploaded",
		core.TooManyFiles:          "Only one video file is allowed",
		core.UnsupportedType:       "Unsupported video file type",
		core.TooLarge:              "Video file is too large",
		core.InvalidVideo:          "Invalid video file",
		core.InvalidSamplingPolicy: "Invalid frame sampling options",
	}

	plyMessages = map[core.ErrorKind]string{
		core.MissingFile:             "No file uploaded",
		core.TooManyFiles:            "Only one file is allowed",
		core.UnsupportedType:         "Only ZIP files are allowed",
		core.TooLarge:                "File is too large",
		core.EmptyArchive:            "Uploaded ZIP is empty",
		core.UnsupportedArchiveEntry: "Unsupported file type inside ZIP",
	}

	fetchMessages = map[core.ErrorKind]string{
		core.InvalidFilename: "Invalid filename",
		core.FileNotFound:    "File not found",
	}
)

const (
	videoFallback    = "Error processing video"
	plyFallback      = "Error processing ZIP"
	internalFallback = "Internal server error"
)

func statusForKind(kind core.ErrorKind) int {
	switch {
	case kind == core.TooLarge:
		return http.StatusRequestEntityTooLarge
	case kind == core.FileNotFound:
		return http.StatusNotFound
	case kind != "" && kind.Category() == core.ValidationError:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// toCodedError maps a pipeline error onto its status code and the endpoint's
// client message.
func toCodedError(err error, messages map[core.ErrorKind]string, fallback string) error {
	kind := core.KindOf(err)
	code := statusForKind(kind)

	message, ok := messages[kind]
	if !ok || code >= http.StatusInternalServerError {
		message = fallback
	}

	return CodedError(code, message, err)
}
