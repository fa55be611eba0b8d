package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/username/commissioncalc/backend/src/apperrors"
	"github.com/username/commissioncalc/backend/src/logger"
	"github.com/username/commissioncalc/backend/src/security/validation"
)

// uploadedFile is one validated multipart part, fully read.
type uploadedFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

// parseMultipart enforces the upload limit on the whole request body.
func parseMultipart(w http.ResponseWriter, r *http.Request, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1024*1024)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		logger.FromContext(r.Context()).Warn("Failed to parse multipart form or request too large", "error", err, "limit", maxBytes)
		return apperrors.Wrap(apperrors.KindValidation, err,
			fmt.Sprintf("Failed to parse form or request too large (max %d MB)", maxBytes/(1024*1024)))
	}
	return nil
}

// formFile returns the named part, or nil when the form has no such part.
// parseMultipart must have run first.
func formFile(r *http.Request, field string, maxBytes int64) (*uploadedFile, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
		return nil, nil
	}
	return readPart(r, field, r.MultipartForm.File[field][0], maxBytes)
}

// readPart validates and reads one multipart file.
func readPart(r *http.Request, field string, header *multipart.FileHeader, maxBytes int64) (*uploadedFile, error) {
	log := logger.FromContext(r.Context())
	if header.Size > maxBytes {
		log.Warn("Uploaded file header reports size too large", "field", field, "fileSize", header.Size, "limit", maxBytes)
		return nil, apperrors.Newf(apperrors.KindValidation, "%s too large, max %d MB", field, maxBytes/(1024*1024))
	}

	file, err := header.Open()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, err, fmt.Sprintf("Failed to read %s from request", field))
	}
	defer file.Close()

	clientContentType := header.Header.Get("Content-Type")
	detected, err := validation.ValidateTextUpload(file, clientContentType)
	if err != nil {
		if errors.Is(err, validation.ErrValidationFailed) {
			return nil, apperrors.Wrap(apperrors.KindValidation, err, fmt.Sprintf("%s: %v", field, err))
		}
		return nil, fmt.Errorf("error validating %s: %w", field, err)
	}

	content, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", field, err)
	}
	if int64(len(content)) > maxBytes {
		return nil, apperrors.Newf(apperrors.KindValidation, "%s too large, max %d MB", field, maxBytes/(1024*1024))
	}
	log.Debug("Upload accepted", "field", field, "filename", header.Filename, "clientType", clientContentType, "detectedType", detected, "size", len(content))

	return &uploadedFile{
		Filename:    header.Filename,
		ContentType: clientContentType,
		Content:     content,
	}, nil
}

// firstFormFile returns the first present part among fields.
func firstFormFile(r *http.Request, maxBytes int64, fields ...string) (*uploadedFile, error) {
	for _, field := range fields {
		f, err := formFile(r, field, maxBytes)
		if err != nil || f != nil {
			return f, err
		}
	}
	return nil, nil
}
