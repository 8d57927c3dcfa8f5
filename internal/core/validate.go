package core

import (
	"mime"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	VideoMediaTypes      = []string{"video/mp4", "video/webm"}
	PointCloudMediaTypes = []string{"application/zip", "application/x-zip-compressed"}
)

const CanonicalVideoType = "video/mp4"

type UploadDescriptor struct {
	MediaType string
	Size      int64
	FileCount int
}

type UploadRules struct {
	AllowedTypes []string
	MaxBytes     int64
}

// ValidateUpload checks presence, count, media type and size, in that order.
func ValidateUpload(desc UploadDescriptor, rules UploadRules) error {
	if desc.FileCount == 0 || desc.Size == 0 {
		return Errorf(MissingFile, "no file uploaded")
	}

	if desc.FileCount > 1 {
		return Errorf(TooManyFiles, "expected a single file, got %d", desc.FileCount)
	}

	if !isAllowedType(desc.MediaType, rules.AllowedTypes) {
		return Errorf(UnsupportedType, "media type '%s' is not allowed", desc.MediaType)
	}

	if rules.MaxBytes > 0 && desc.Size > rules.MaxBytes {
		return Errorf(TooLarge, "file size %d exceeds limit of %d bytes", desc.Size, rules.MaxBytes)
	}

	return nil
}

// NormalizeMediaType strips parameters and lowercases the type, so that
// "video/webm; codecs=vp9" becomes "video/webm".
func NormalizeMediaType(mediaType string) string {
	parsed, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mediaType))
	}
	return parsed
}

func isAllowedType(mediaType string, allowed []string) bool {
	mediaType = NormalizeMediaType(mediaType)
	for _, t := range allowed {
		if mediaType == t {
			return true
		}
	}
	return false
}

var objectNameRe = regexp.MustCompile(`^[\w\-.]+$`)

// ValidateObjectName checks that name is a plain file name with the given
// extension that can be safely used as an object key.
func ValidateObjectName(name, ext string, maxLen int) error {
	if name == "" {
		return Errorf(InvalidFilename, "filename is required")
	}

	if maxLen > 0 && len(name) > maxLen {
		return Errorf(InvalidFilename, "filename is too long")
	}

	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\ `) || !objectNameRe.MatchString(name) {
		return Errorf(InvalidFilename, "invalid file name '%s'", name)
	}

	if ext != "" && !strings.EqualFold(filepath.Ext(name), ext) {
		return Errorf(InvalidFilename, "invalid file type '%s', expected %s", name, ext)
	}

	return nil
}
