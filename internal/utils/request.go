package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/KromaEnergia/api-guias/internal/apperr"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Normalizer is implemented by request bodies that clean up their fields
// (trimming, lowercasing) before validation.
type Normalizer interface {
	Normalize()
}

// DecodeJSON decodes a single JSON object into dst, rejecting unknown fields
// and trailing data, normalizes it when dst is a Normalizer, then validates
// it with its struct tags.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return apperr.New(apperr.BadRequest, "request body is empty")
		case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
			return apperr.New(apperr.BadRequest, "malformed JSON")
		case errors.As(err, &typeErr):
			return apperr.New(apperr.BadRequest, fmt.Sprintf("field '%s' has the wrong type", typeErr.Field))
		case errors.As(err, &maxErr):
			return apperr.New(apperr.BadRequest, "request body too large")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			field := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return apperr.New(apperr.BadRequest, "unknown field "+field)
		default:
			return apperr.Wrap(apperr.BadRequest, "invalid request body", err)
		}
	}
	if dec.More() {
		return apperr.New(apperr.BadRequest, "request body must contain a single JSON object")
	}
	if n, ok := dst.(Normalizer); ok {
		n.Normalize()
	}
	return Validate(dst)
}

// Validate checks struct tags and reports the first failing field.
func Validate(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Wrap(apperr.Internal, "validation failed", err)
	}
	fe := verrs[0]
	field := fe.Field()
	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("field '%s' is required", field)
	case "email":
		msg = fmt.Sprintf("field '%s' must be a valid email address", field)
	case "min":
		msg = strings.TrimSpace(fmt.Sprintf("field '%s' must be at least %s %s", field, fe.Param(), unit(fe.Kind())))
	case "max":
		msg = strings.TrimSpace(fmt.Sprintf("field '%s' must be at most %s %s", field, fe.Param(), unit(fe.Kind())))
	case "uuid":
		msg = fmt.Sprintf("field '%s' must be a valid UUID", field)
	case "gte":
		msg = fmt.Sprintf("field '%s' must be at least %s", field, fe.Param())
	case "lte":
		msg = fmt.Sprintf("field '%s' must be at most %s", field, fe.Param())
	case "url":
		msg = fmt.Sprintf("field '%s' must be a valid URL", field)
	case "oneof":
		msg = fmt.Sprintf("field '%s' must be one of: %s", field, fe.Param())
	default:
		msg = fmt.Sprintf("field '%s' failed on '%s'", field, fe.Tag())
	}
	return apperr.New(apperr.BadRequest, msg)
}

func unit(k reflect.Kind) string {
	switch k {
	case reflect.Slice, reflect.Array, reflect.Map:
		return "items"
	case reflect.String:
		return "characters long"
	default:
		return ""
	}
}
