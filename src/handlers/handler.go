// backend/src/handlers/handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/username/commissioncalc/backend/src/apperrors"
	"github.com/username/commissioncalc/backend/src/logger"
	"github.com/username/commissioncalc/backend/src/utils"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// HandlerFunc is an http handler that reports failure by returning an error.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Handle turns a returned error into the JSON error body with its mapped status.
func Handle(fn HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}
		status := apperrors.StatusCode(err)
		log := logger.FromContext(r.Context())
		if status >= http.StatusInternalServerError {
			log.Error("Request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
		} else {
			log.Warn("Request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
		}
		utils.SendJSONError(w, apperrors.Message(err), status)
	}
}

// decodeJSON reads a JSON body into dst and runs its validate tags.
func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.Validation("Request body is required")
		}
		return apperrors.Wrap(apperrors.KindValidation, err, "Invalid JSON request body")
	}
	if err := validate.Struct(dst); err != nil {
		return apperrors.Wrap(apperrors.KindValidation, err, validationMessage(err))
	}
	return nil
}

// validationMessage names each failing field the way the request spells it.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed '%s' validation", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

func init() {
	// Report json tag names instead of Go field names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
}
