package profile

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator instance used for fragments and
// model responses.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("notblank", notBlank)
	})
	return validate
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// Validate checks a fragment before it is handed to Unify.
func Validate(fragment SourceProfile) error {
	if fragment == nil {
		return fmt.Errorf("fragment is required")
	}

	if err := Validator().Struct(fragment); err != nil {
		return fmt.Errorf("invalid %s fragment: %w", fragment.Platform(), err)
	}

	return nil
}
