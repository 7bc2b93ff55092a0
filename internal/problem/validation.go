package problem

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationType identifies validation problems.
const ValidationType = "https://tools.ietf.org/html/rfc7231#section-6.5.1"

// Factory converts request failures into problem details. It replaces the
// framework default response for invalid models.
type Factory struct {
	validate *validator.Validate
}

// NewFactory returns a Factory whose validator reports JSON field names.
func NewFactory() *Factory {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})

	return &Factory{validate: v}
}

// Validate runs struct validation on model.
func (f *Factory) Validate(model any) error {
	return f.validate.Struct(model)
}

// Validation builds a 400 problem from a decoding or validation error.
func (f *Factory) Validation(r *http.Request, err error) Details {
	p := Details{
		Type:     ValidationType,
		Title:    "One or more validation errors occurred.",
		Status:   http.StatusBadRequest,
		Instance: r.URL.Path,
		Errors:   map[string][]string{},
	}

	var verrs validator.ValidationErrors
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError

	switch {
	case errors.As(err, &verrs):
		for _, fe := range verrs {
			field := fieldPath(fe.Namespace())
			p.Errors[field] = append(p.Errors[field], message(fe))
		}
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "$"
		}
		p.Errors[field] = append(p.Errors[field], fmt.Sprintf("must be of type %s", typeErr.Type))
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		p.Errors["$"] = append(p.Errors["$"], "request body is not valid JSON")
	case errors.Is(err, io.EOF):
		p.Errors["$"] = append(p.Errors["$"], "request body is empty")
	default:
		p.Detail = err.Error()
	}

	if len(p.Errors) == 0 {
		p.Errors = nil
	}
	return p
}

// Bind decodes the JSON body of r into model and validates it. On failure it
// writes a validation problem to w and returns false.
func (f *Factory) Bind(w http.ResponseWriter, r *http.Request, model any) bool {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(model); err != nil {
		_ = Write(w, f.Validation(r, err))
		return false
	}
	if err := f.Validate(model); err != nil {
		_ = Write(w, f.Validation(r, err))
		return false
	}

	return true
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "url":
		return "must be a valid URL"
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param())
		}
		return "failed " + fe.Tag()
	}
}
