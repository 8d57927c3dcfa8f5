package core

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	MissingFile             ErrorKind = "missing_file"
	TooManyFiles            ErrorKind = "too_many_files"
	UnsupportedType         ErrorKind = "unsupported_type"
	TooLarge                ErrorKind = "too_large"
	InvalidFilename         ErrorKind = "invalid_filename"
	InvalidSamplingPolicy   ErrorKind = "invalid_sampling_policy"
	InvalidVideo            ErrorKind = "invalid_video"
	EmptyArchive            ErrorKind = "empty_archive"
	UnsupportedArchiveEntry ErrorKind = "unsupported_archive_entry"

	ConversionFailed      ErrorKind = "conversion_failed"
	FrameExtractionFailed ErrorKind = "frame_extraction_failed"
	SourceMissing         ErrorKind = "source_missing"
	ArchiveWriteFailed    ErrorKind = "archive_write_failed"
	ArchiveFailed         ErrorKind = "archive_failed"
	StageFailed           ErrorKind = "stage_failed"

	FileNotFound ErrorKind = "file_not_found"
	StoreFailure ErrorKind = "store_failure"

	UploadFailed ErrorKind = "upload_failed"
)

type Category string

const (
	ValidationError   Category = "validation"
	ExternalToolError Category = "external_tool"
	StoreError        Category = "store"
	TransportError    Category = "transport"
)

func (k ErrorKind) Category() Category {
	switch k {
	case MissingFile, TooManyFiles, UnsupportedType, TooLarge, InvalidFilename,
		InvalidSamplingPolicy, InvalidVideo, EmptyArchive, UnsupportedArchiveEntry:
		return ValidationError
	case FileNotFound, StoreFailure:
		return StoreError
	case UploadFailed:
		return TransportError
	default:
		return ExternalToolError
	}
}

// Error is the error type returned by every pipeline component. Stage and
// ExitCode are only set for StageFailed.
type Error struct {
	Kind     ErrorKind
	Message  string
	Stage    Stage
	ExitCode int
	Err      error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Kind == StageFailed {
		msg += fmt.Sprintf(" (stage %s, exit code %d)", e.Stage, e.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Errorf(kind ErrorKind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func WrapError(kind ErrorKind, err error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func stageError(stage Stage, exitCode int, err error) error {
	return &Error{Kind: StageFailed, Stage: stage, ExitCode: exitCode, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there
// is none.
func KindOf(err error) ErrorKind {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Kind
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
