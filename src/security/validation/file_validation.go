package validation

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/username/commissioncalc/backend/src/logger"
)

// ErrValidationFailed wraps every upload rejection.
var ErrValidationFailed = errors.New("upload validation failed")

// AllowedClientContentTypes is a map for quick lookup of allowed client-declared MIME types.
// Payment files may be CSV, JSON or key:value text; rules sheets are plain text.
var AllowedClientContentTypes = map[string]bool{
	"":                         true, // some clients omit the part type
	"text/csv":                 true,
	"application/csv":          true,
	"application/vnd.ms-excel": true, // Often used for CSV by older Excel
	"text/plain":               true,
	"text/markdown":            true,
	"application/json":         true,
	"application/octet-stream": true, // Fallback, but be more cautious
	"application/pdf":          false,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": false, // .xlsx, explicitly disallow
}

// allowedDetectedTypes are the sniffed types a text upload may have.
// JSON and CSV both sniff as text/plain.
var allowedDetectedTypes = map[string]bool{
	"text/plain":               true,
	"text/csv":                 true,
	"application/csv":          true,
	"application/json":         true,
	"application/octet-stream": true, // strict parsing later rejects binary payloads
}

// ValidateClientContentType checks the Content-Type header provided by the client.
func ValidateClientContentType(contentType string) error {
	mediaType := strings.ToLower(strings.TrimSpace(contentType))
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = parsed
	}
	if allowed, exists := AllowedClientContentTypes[mediaType]; !exists || !allowed {
		logger.L.Warn("Disallowed client-declared Content-Type", "contentType", contentType)
		return fmt.Errorf("%w: client-declared file type '%s' is not allowed", ErrValidationFailed, contentType)
	}
	return nil
}

// ValidateFileContentByMagicBytes checks the actual file content signature (magic bytes).
// It returns the detected content type and an error if validation fails.
func ValidateFileContentByMagicBytes(file io.ReadSeeker) (string, error) {
	if file == nil {
		return "", fmt.Errorf("%w: file is nil", ErrValidationFailed)
	}

	buffer := make([]byte, 512) // Read first 512 bytes for MIME detection
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read file for content type checking: %w", err)
	}

	// Reset so the parser can read the full file.
	if _, seekErr := file.Seek(0, io.SeekStart); seekErr != nil {
		return "", fmt.Errorf("failed to reset file read pointer: %w", seekErr)
	}

	detectedContentType := http.DetectContentType(buffer[:n])
	detectedContentType = strings.ToLower(strings.Split(detectedContentType, ";")[0])

	if !allowedDetectedTypes[detectedContentType] {
		logger.L.Warn("Disallowed detected file content type (magic bytes)", "detectedContentType", detectedContentType)
		return detectedContentType, fmt.Errorf("%w: detected file content type '%s' is not a text file", ErrValidationFailed, detectedContentType)
	}

	logger.L.Debug("File content type (magic bytes) validated", "detectedContentType", detectedContentType)
	return detectedContentType, nil
}

// ValidateTextUpload runs both checks for one uploaded part.
func ValidateTextUpload(file io.ReadSeeker, clientContentType string) (string, error) {
	if err := ValidateClientContentType(clientContentType); err != nil {
		return "", err
	}
	return ValidateFileContentByMagicBytes(file)
}
