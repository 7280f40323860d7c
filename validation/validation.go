/*
validation.go - Struct validation shared by the API and the domain packages

PURPOSE:
  One validator instance, configured to report fields by their JSON name,
  and one set of field messages. Callers get a map from field name to
  message they can put straight into an error response.

USAGE:
  fields, err := validation.Struct(in)
  if err != nil {
      return err // not a field failure (e.g. a nil or non-struct value)
  }
  if len(fields) > 0 {
      return &ValidationError{Fields: fields}
  }

  Messages for a specific field and tag can be replaced:

  validation.Struct(in, validation.Messages{
      "justification.required": "justification is required to approve or reject a request",
  })

SEE ALSO:
  - selfservice/validation.go: submit and review inputs
  - api/handlers.go: decodeBody
*/
package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Messages overrides the message for "field.tag" keys.
type Messages map[string]string

var instance = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
})

// Struct validates s. Field failures are returned as a map keyed by the
// leaf JSON field name; the map is nil when s is valid. Any other error from
// the validator is returned as is.
func Struct(s any, overrides ...Messages) (map[string]string, error) {
	err := instance().Struct(s)
	if err == nil {
		return nil, nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, err
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = message(fe, overrides)
	}
	return fields, nil
}

func message(fe validator.FieldError, overrides []Messages) string {
	key := fe.Field() + "." + fe.Tag()
	for _, m := range overrides {
		if msg, ok := m[key]; ok {
			return msg
		}
	}
	return Message(fe)
}

// Message is the default text for one field failure.
func Message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		switch fe.Kind() {
		case reflect.Slice, reflect.Array, reflect.Map:
			return field + " must have at most " + fe.Param() + " items"
		}
		return field + " must be at most " + fe.Param() + " characters"
	case "oneof":
		return field + " must be one of: " + fe.Param()
	case "email":
		return field + " must be an e-mail address"
	case "datetime":
		if fe.Param() == "2006-01-02" {
			return field + " must use the format YYYY-MM-DD"
		}
		return field + " must match the layout " + fe.Param()
	case "numeric":
		return field + " must be a number"
	}
	return field + " is invalid"
}
