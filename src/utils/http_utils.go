// backend/src/utils/http_utils.go
package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/username/commissioncalc/backend/src/logger"
)

// GenerateETag creates a SHA256 hash of the JSON representation of the data.
// Returns the ETag string (hex-encoded hash) and any error during JSON marshaling.
func GenerateETag(data interface{}) (string, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal data for ETag generation: %w", err)
	}
	hash := sha256.Sum256(jsonData)
	return hex.EncodeToString(hash[:]), nil
}

// SendJSON writes data as a JSON response with the given status.
func SendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil && logger.L != nil {
		logger.L.Error("Error encoding JSON response", "error", err)
	}
}

// SendJSONError sends the {"error": true, "message": ...} body every failed request gets.
func SendJSONError(w http.ResponseWriter, message string, statusCode int) {
	if logger.L != nil {
		logger.L.Warn("Sending JSON error to client", "message", message, "statusCode", statusCode)
	}
	SendJSON(w, map[string]interface{}{"error": true, "message": message}, statusCode)
}

// SendJSONWithETag answers 304 when the client already holds the current
// representation, otherwise writes data with its ETag.
func SendJSONWithETag(w http.ResponseWriter, r *http.Request, data interface{}) {
	currentETag, etagErr := GenerateETag(data)
	if etagErr != nil && logger.L != nil {
		logger.L.Error("Failed to generate ETag", "path", r.URL.Path, "error", etagErr)
	}

	w.Header().Set("Cache-Control", "no-cache, private")

	if etagErr == nil && currentETag != "" {
		quotedETag := fmt.Sprintf("\"%s\"", currentETag)
		w.Header().Set("ETag", quotedETag)
		for _, cETag := range strings.Split(r.Header.Get("If-None-Match"), ",") {
			if strings.TrimSpace(cETag) == quotedETag {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
	}
	SendJSON(w, data, http.StatusOK)
}
