package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// submissionValidate is shared by all callers; validator.Validate caches struct metadata
// and is safe for concurrent use.
var submissionValidate *validator.Validate

func init() {
	submissionValidate = validator.New()
	_ = submissionValidate.RegisterValidation("notblank", validateNotBlank)
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// ValidateSubmission checks that a submission is well formed: a non-blank description,
// named non-empty files and non-blank tags. Failures wrap ErrInvalidInput.
func ValidateSubmission(s Submission) error {
	err := submissionValidate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Errorf("%w: %s failed %q", ErrInvalidInput, verrs[0].Namespace(), verrs[0].Tag())
	}
	return fmt.Errorf("%w: %v", ErrInvalidInput, err)
}

// ValidateScore checks that a trust score or visibility weight lies in [0, MaxTrustScore].
func ValidateScore(field string, v uint64) error {
	if v > MaxTrustScore {
		return fmt.Errorf("%w: %s %d out of range 0-%d", ErrInvalidInput, field, v, MaxTrustScore)
	}
	return nil
}
