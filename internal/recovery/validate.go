package recovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"coursecraft-backend/internal/domain"
)

// ShapeViolation reports a parsed value that does not meet a kind's
// minimum-shape contract. It never leaves the recovery package's callers
// as an error; the pipeline escalates to the next tier instead.
type ShapeViolation struct {
	Kind   domain.Kind
	Field  string
	Reason string
}

func (v *ShapeViolation) Error() string {
	if v.Field == "" {
		return fmt.Sprintf("%s: %s", v.Kind, v.Reason)
	}
	return fmt.Sprintf("%s.%s: %s", v.Kind, v.Field, v.Reason)
}

// IsShapeViolation reports whether err is a ShapeViolation.
func IsShapeViolation(err error) bool {
	var sv *ShapeViolation
	return errors.As(err, &sv)
}

// Validator checks parsed values against the per-kind contracts declared by
// the struct tags on the domain payload types.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator that reports fields by their JSON names.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return strings.ToLower(fld.Name[:1]) + fld.Name[1:]
		}
		return name
	})
	return &Validator{validate: v}
}

// Parse decodes text as JSON into a generic value.
func Parse(text string) (any, error) {
	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, err
	}
	return parsed, nil
}

// Decode parses text and validates it as kind.
func (v *Validator) Decode(text string, kind domain.Kind) (domain.Payload, error) {
	parsed, err := Parse(text)
	if err != nil {
		return nil, err
	}
	return v.Validate(parsed, kind)
}

// Validate checks parsed against kind's contract and returns the typed
// payload. Unknown fields are ignored. A single string where a list of
// strings is expected is widened; every other type mismatch is a violation.
func (v *Validator) Validate(parsed any, kind domain.Kind) (domain.Payload, error) {
	payload, err := domain.NewPayload(kind)
	if err != nil {
		return nil, &ShapeViolation{Kind: kind, Reason: err.Error()}
	}

	switch parsed.(type) {
	case map[string]any:
	case []any:
		if !kind.IsList() {
			return nil, &ShapeViolation{Kind: kind, Reason: "expected object, got array"}
		}
	default:
		return nil, &ShapeViolation{Kind: kind, Reason: fmt.Sprintf("expected structured value, got %T", parsed)}
	}

	data, err := json.Marshal(parsed)
	if err != nil {
		return nil, &ShapeViolation{Kind: kind, Reason: err.Error()}
	}
	if err := json.Unmarshal(data, payload); err != nil {
		return nil, typeViolation(kind, err)
	}

	if err := v.ValidatePayload(payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// ValidatePayload runs the struct-level rules on an already typed payload.
func (v *Validator) ValidatePayload(payload domain.Payload) error {
	err := v.validate.Struct(payload)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &ShapeViolation{
			Kind:   payload.Kind(),
			Field:  trimNamespace(fe.Namespace()),
			Reason: describeTag(fe),
		}
	}
	return &ShapeViolation{Kind: payload.Kind(), Reason: err.Error()}
}

func typeViolation(kind domain.Kind, err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &ShapeViolation{
			Kind:   kind,
			Field:  typeErr.Field,
			Reason: fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value),
		}
	}
	return &ShapeViolation{Kind: kind, Reason: err.Error()}
}

// trimNamespace drops the leading struct name: "Topic.title" -> "title".
func trimNamespace(ns string) string {
	if i := strings.IndexByte(ns, '.'); i != -1 {
		return ns[i+1:]
	}
	return ns
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	}
	return fmt.Sprintf("failed %q rule", fe.Tag())
}
