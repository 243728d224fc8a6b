package printing

import (
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/invoicing/backend/internal/domain/printing"
)

// bindingTag is the struct tag the DTOs carry. gin's validator reads the same tag.
const bindingTag = "binding"

// RegisterValidations adds the document-specific validation tags to v:
// docdate for record dates and recordkind for the case-insensitive kind
func RegisterValidations(v *validator.Validate) error {
	if err := v.RegisterValidation("docdate", func(fl validator.FieldLevel) bool {
		_, ok := parseDate(fl.Field().String())
		return ok
	}); err != nil {
		return err
	}
	return v.RegisterValidation("recordkind", func(fl validator.FieldLevel) bool {
		kind := printing.RecordKind(strings.ToUpper(strings.TrimSpace(fl.Field().String())))
		return slices.Contains(printing.AllRecordKinds(), kind)
	})
}

// newValidator builds a validator that reports JSON field names
func newValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName(bindingTag)
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// the tag names are constants and the funcs are valid, so registration cannot fail
	_ = RegisterValidations(v)
	return v
}
