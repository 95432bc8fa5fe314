// Package validation holds the shared struct validator and its English
// translator. Packages register their own tags and struct rules in init.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	Validate   *validator.Validate
	Translator ut.Translator

	// custom validation tags & texts
	phoneTag   = "phone10"
	phoneText  = "{0} must be 10 digits and only contain numbers"
	phoneRegex = regexp.MustCompile(`^\d{10}$`)

	notBlankTag  = "notblank"
	notBlankText = "{0} cannot be blank"
)

func init() {
	Validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	Translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(Validate, Translator)

	// Use JSON tag names for errors instead of Go struct names.
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = Validate.RegisterValidation(phoneTag, phoneValidation)
	RegisterCustomTranslation(phoneTag, phoneText)

	_ = Validate.RegisterValidation(notBlankTag, notBlankValidation)
	RegisterCustomTranslation(notBlankTag, notBlankText)
}

// RegisterCustomTranslation registers the message for a validation tag.
// The text may reference the field name as {0}.
func RegisterCustomTranslation(tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = Validate.RegisterTranslation(
		tag, Translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// Struct validates s with the shared validator.
func Struct(s any) error {
	return Validate.Struct(s)
}

// Error carries per-field messages keyed by the form field name.
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid input: %d field(s)", len(e.Fields))
}

// Check validates s and returns an *Error with translated messages when a
// field fails.
func Check(s any) error {
	err := Validate.Struct(s)
	if err == nil {
		return nil
	}
	if fields := FieldErrors(err); fields != nil {
		return &Error{Fields: fields}
	}
	return err
}

// Fields returns the field messages when err is an *Error.
func Fields(err error) (map[string]string, bool) {
	var vErr *Error
	if errors.As(err, &vErr) {
		return vErr.Fields, true
	}
	return nil, false
}

// FieldErrors translates validation errors into a field -> message map.
// It returns nil when err is not a validation error.
func FieldErrors(err error) map[string]string {
	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) {
		return nil
	}
	fldErrs := make(map[string]string, len(vErrs))
	for _, vErr := range vErrs {
		if _, seen := fldErrs[vErr.Field()]; seen {
			continue
		}
		fldErrs[vErr.Field()] = vErr.Translate(Translator)
	}
	return fldErrs
}

// Custom Validators

func phoneValidation(fl validator.FieldLevel) bool {
	return phoneRegex.MatchString(fl.Field().String())
}

func notBlankValidation(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return false
}
