package services

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// validate is the shared input validator for service DTOs.
var validate = newValidator()

// safeKeyPattern constrains field keys and entity kinds/ids that end up inside
// raw JSON path fragments. Checked before any query is constructed.
var safeKeyPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("safekey", func(fl validator.FieldLevel) bool {
		return safeKeyPattern.MatchString(fl.Field().String())
	})
	return v
}

// IsSafeKey reports whether s is usable as a JSON object key inside a
// containment predicate.
func IsSafeKey(s string) bool {
	return safeKeyPattern.MatchString(s)
}
