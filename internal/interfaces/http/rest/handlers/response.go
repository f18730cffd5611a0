// Package handlers adapts the services to JSON over HTTP.
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
	"go.uber.org/zap"

	appErrors "coursecraft-backend/pkg/errors"
)

// maxBodyBytes bounds request bodies; syllabus text is the largest input.
const maxBodyBytes = 1 << 20

var validate = newValidator()

// newValidator names fields by their json tags in error details.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeRequest reads a JSON body into dst and runs its validate tags.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return appErrors.NewValidationError("request body is required").WithCode("EMPTY_BODY")
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return appErrors.NewValidationError(fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)).
				WithCode("BODY_TOO_LARGE")
		}
		return appErrors.NewValidationError("invalid request body: " + err.Error()).WithCode("INVALID_JSON")
	}
	if err := validate.Struct(dst); err != nil {
		return describeValidation(err)
	}
	return nil
}

// describeValidation reports every failed field, keyed by its JSON name.
func describeValidation(err error) *appErrors.AppError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return appErrors.NewValidationError(err.Error()).WithCode("INVALID_REQUEST")
	}
	msgs := make([]string, 0, len(verrs))
	fields := make(map[string]interface{}, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag()))
		fields[fe.Field()] = fe.Tag()
	}
	return appErrors.NewValidationError("validation error: " + strings.Join(msgs, "; ")).
		WithCode("INVALID_FIELDS").
		WithDetails(map[string]interface{}{"fields": fields})
}

func respondJSON(w http.ResponseWriter, logger *zap.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}
