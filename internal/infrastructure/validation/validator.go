// Package validation checks request structs against their `binding` tags and
// reports failures as *shared.ValidationError keyed by JSON field name.
package validation

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/retail/backend/internal/domain/shared"
)

var (
	once     sync.Once
	validate *validator.Validate
)

// Engine returns the validator shared with gin's binding package.
// Field names in errors are JSON tag names.
func Engine() *validator.Validate {
	once.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			v = validator.New(validator.WithRequiredStructEnabled())
			v.SetTagName("binding")
		}
		v.RegisterTagNameFunc(jsonFieldName)
		validate = v
	})
	return validate
}

// Setup configures gin's binding validator. Call once at startup.
func Setup() {
	Engine()
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
	}
	return name
}

// Struct validates v and translates failures with Translate
func Struct(v any) error {
	if err := Engine().Struct(v); err != nil {
		return Translate(err)
	}
	return nil
}

// Translate converts binding and validation failures into *shared.ValidationError.
// Errors it does not recognize are returned unchanged.
func Translate(err error) error {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := shared.NewValidationError()
		for _, fe := range verrs {
			out.Add(fieldPath(fe), Message(fe))
		}
		return out
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return shared.FieldError(field, "Must be of type "+typeErr.Type.String())
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) || strings.Contains(err.Error(), "EOF") {
		return shared.FieldError("body", "Malformed JSON body")
	}

	return err
}

// BindingError is Translate for request decoding, where every failure is the
// client's: anything unrecognized becomes a "body" field error.
func BindingError(err error) error {
	if err == nil {
		return nil
	}
	translated := Translate(err)
	if shared.ErrorCode(translated) == shared.CodeValidation {
		return translated
	}
	return shared.FieldError("body", err.Error())
}

// fieldPath drops the struct name from the namespace,
// e.g. "CheckoutRequest.items[1].quantity" becomes "items[1].quantity".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

// Message returns a human-readable message for a failed tag
func Message(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "required_without":
		return "This field is required"
	case "min":
		if e.Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		if e.Kind() == reflect.Slice {
			return "Must contain at least " + e.Param() + " item(s)"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "uuid":
		return "Invalid UUID format"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "gte":
		return "Must be greater than or equal to " + e.Param()
	case "lte":
		return "Must be less than or equal to " + e.Param()
	case "gt":
		return "Must be greater than " + e.Param()
	case "lt":
		return "Must be less than " + e.Param()
	case "numeric":
		return "Must be numeric"
	default:
		return "Invalid value"
	}
}
