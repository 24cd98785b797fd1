// Package media validates uploaded attachments and stores them on disk.
package media

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"strings"

	"chandabaz/internal/metrics"
	"chandabaz/internal/models"
)

var (
	ErrTooManyFiles    = errors.New("too many files")
	ErrFileTooLarge    = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmptyFile       = errors.New("empty file")
)

// Limits bound one upload batch
type Limits struct {
	MaxFiles    int
	MaxFileSize int64
}

// allowed maps accepted MIME types to their media type and stored extension
var allowed = map[string]struct {
	Type models.MediaType
	Ext  string
}{
	"image/jpeg":      {models.MediaImage, ".jpg"},
	"image/jpg":       {models.MediaImage, ".jpg"},
	"image/png":       {models.MediaImage, ".png"},
	"image/gif":       {models.MediaImage, ".gif"},
	"image/webp":      {models.MediaImage, ".webp"},
	"video/mp4":       {models.MediaVideo, ".mp4"},
	"video/quicktime": {models.MediaVideo, ".mov"},
	"video/avi":       {models.MediaVideo, ".avi"},
	"video/x-msvideo": {models.MediaVideo, ".avi"},
	"application/pdf": {models.MediaPDF, ".pdf"},
}

// Upload is one file received from a client
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// FromMultipart adapts multipart file headers
func FromMultipart(headers []*multipart.FileHeader) []Upload {
	uploads := make([]Upload, 0, len(headers))
	for _, fh := range headers {
		uploads = append(uploads, Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}
	return uploads
}

// NormalizeContentType lowercases the type and drops parameters
func NormalizeContentType(raw string) string {
	mt, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	return mt
}

// TypeOf returns the media type of an accepted MIME type
func TypeOf(contentType string) (models.MediaType, bool) {
	a, ok := allowed[NormalizeContentType(contentType)]
	return a.Type, ok
}

// Validate checks count, size and MIME type of every upload before anything is stored
func Validate(uploads []Upload, limits Limits) error {
	if limits.MaxFiles > 0 && len(uploads) > limits.MaxFiles {
		metrics.UploadsRejected.WithLabelValues("count").Inc()
		return fmt.Errorf("%w: at most %d files per request", ErrTooManyFiles, limits.MaxFiles)
	}
	for _, u := range uploads {
		if _, ok := TypeOf(u.ContentType); !ok {
			metrics.UploadsRejected.WithLabelValues("type").Inc()
			return fmt.Errorf("%w: %s (%s)", ErrUnsupportedType, u.ContentType, u.Filename)
		}
		if limits.MaxFileSize > 0 && u.Size > limits.MaxFileSize {
			metrics.UploadsRejected.WithLabelValues("size").Inc()
			return fmt.Errorf("%w: %s exceeds %d MB", ErrFileTooLarge, u.Filename, limits.MaxFileSize>>20)
		}
		if u.Size == 0 {
			metrics.UploadsRejected.WithLabelValues("empty").Inc()
			return fmt.Errorf("%w: %s", ErrEmptyFile, u.Filename)
		}
	}
	return nil
}

// IsUploadError reports whether err is a client-side upload problem
func IsUploadError(err error) bool {
	return errors.Is(err, ErrTooManyFiles) ||
		errors.Is(err, ErrFileTooLarge) ||
		errors.Is(err, ErrUnsupportedType) ||
		errors.Is(err, ErrEmptyFile)
}
