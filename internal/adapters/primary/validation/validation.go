package validation

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/lorrc/clinic-queue/internal/core/errors"
)

// MaxBodyBytes bounds request bodies. Every request in this API is tiny.
const MaxBodyBytes = 16 << 10

// Validatable is implemented by request DTOs that check their own fields.
type Validatable interface {
	Validate() error
}

// Validator validates request data
type Validator struct {
	errors *apperrors.ValidationErrors
}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{
		errors: apperrors.NewValidationErrors(),
	}
}

// HasErrors returns true if there are validation errors
func (v *Validator) HasErrors() bool {
	return v.errors.HasErrors()
}

// Errors returns the validation errors
func (v *Validator) Errors() *apperrors.ValidationErrors {
	return v.errors
}

// Required validates that a string is not empty
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.errors.Add(field, "This field is required")
	}
	return v
}

// MaxLength validates maximum string length
func (v *Validator) MaxLength(field, value string, max int) *Validator {
	if len(value) > max {
		v.errors.Add(field, "Must be at most "+strconv.Itoa(max)+" characters")
	}
	return v
}

// OneOf validates value is one of the allowed values
func (v *Validator) OneOf(field, value string, allowed []string) *Validator {
	if value == "" {
		return v // Empty is handled by Required
	}

	for _, a := range allowed {
		if value == a {
			return v
		}
	}

	v.errors.Add(field, "Must be one of: "+strings.Join(allowed, ", "))
	return v
}

// Custom adds a custom validation
func (v *Validator) Custom(field string, valid bool, message string) *Validator {
	if !valid {
		v.errors.Add(field, message)
	}
	return v
}

// DecodeAndValidate decodes the JSON request body and, when the type
// implements Validatable, validates it. An empty body decodes as the zero
// value so that missing fields surface as validation errors.
func DecodeAndValidate[T any](w http.ResponseWriter, r *http.Request) (*T, error) {
	var req T

	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return nil, apperrors.NewBadRequestError(err, "Invalid request body")
	}

	if v, ok := any(&req).(Validatable); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}

	return &req, nil
}
