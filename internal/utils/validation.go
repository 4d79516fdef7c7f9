package utils

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/theater-qr-provisioning/internal/seat"
)

// Validate checks request structs.  Field names in errors follow the json
// tags so they line up with the request body the client sent.
var Validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	// seat: a canonical seat token such as A1 or C20
	_ = v.RegisterValidation("seat", func(fl validator.FieldLevel) bool {
		_, err := seat.Parse(fl.Field().String())
		return err == nil
	})
	return v
}

// ValidationFields flattens validator errors into field -> failed tag.
// Dive errors on slices keep their index, e.g. "seats[2]".  Errors that
// are not validator errors yield nil.
func ValidationFields(err error) map[string]string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}
	out := make(map[string]string, len(ve))
	for _, fe := range ve {
		name := fe.Namespace()
		if i := strings.Index(name, "."); i >= 0 {
			name = name[i+1:]
		}
		out[name] = fe.Tag()
	}
	return out
}
