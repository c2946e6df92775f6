package service

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	appErrors "github.com/learnbridge/learnbridge-api/pkg/errors"
)

// ResourceUpload carries upload metadata and the stream reader.
type ResourceUpload struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.ReadSeeker
}

// UploadGate validates file type and size before a submission may enter the
// review workflow. Rejections happen before any record or file is persisted.
type UploadGate struct {
	maxSize int64
	mimeSet map[string]struct{}
}

// DefaultAllowedMIMEs lists the document and image types accepted for
// learning resources.
var DefaultAllowedMIMEs = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-powerpoint",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"text/plain",
	"image/jpeg",
	"image/png",
	"image/gif",
}

// NewUploadGate constructs an UploadGate with defaults for zero values.
func NewUploadGate(maxSize int64, allowedMIMEs []string) *UploadGate {
	if maxSize <= 0 {
		maxSize = 10 * 1024 * 1024
	}
	if len(allowedMIMEs) == 0 {
		allowedMIMEs = DefaultAllowedMIMEs
	}
	mimeSet := make(map[string]struct{}, len(allowedMIMEs))
	for _, mt := range allowedMIMEs {
		mimeSet[strings.ToLower(mt)] = struct{}{}
	}
	return &UploadGate{maxSize: maxSize, mimeSet: mimeSet}
}

// Admit validates the upload and returns the effective MIME type.
func (g *UploadGate) Admit(upload ResourceUpload) (string, error) {
	if upload.Content == nil || upload.Size <= 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if upload.Size > g.maxSize {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes limit", g.maxSize))
	}
	mimeType, err := g.detectMime(upload)
	if err != nil {
		return "", err
	}
	// DetectContentType may append parameters ("text/plain; charset=utf-8").
	mimeType = strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
	if _, allowed := g.mimeSet[mimeType]; !allowed {
		return "", appErrors.Clone(appErrors.ErrValidation, "invalid file type; only PDF, DOC, DOCX, PPT, PPTX, TXT, and images are allowed")
	}
	return mimeType, nil
}

func (g *UploadGate) detectMime(upload ResourceUpload) (string, error) {
	if upload.MimeType != "" {
		return upload.MimeType, nil
	}
	header := make([]byte, 512)
	n, err := upload.Content.Read(header)
	if err != nil && err != io.EOF {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect file")
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	if n == 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "empty file")
	}
	return http.DetectContentType(header[:n]), nil
}
