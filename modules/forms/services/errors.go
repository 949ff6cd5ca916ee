package services

import (
	"errors"

	"github.com/jacksonlee411/tableform/pkg/formlogic"
)

// ValidationFailedError carries the per-field errors of a rejected
// submission.
type ValidationFailedError struct {
	Result formlogic.ValidationResult
}

func (e *ValidationFailedError) Error() string { return "submission failed validation" }

func IsValidationFailed(err error) (formlogic.ValidationResult, bool) {
	v, ok := errors.AsType[*ValidationFailedError](err)
	if !ok {
		return formlogic.ValidationResult{}, false
	}
	return v.Result, true
}

// ProviderError hides the upstream failure from fillers. The cause stays
// reachable through Unwrap for logging.
type ProviderError struct {
	SubmissionID string
	cause        error
}

func (e *ProviderError) Error() string { return "submission could not be delivered" }

func (e *ProviderError) Unwrap() error { return e.cause }

func IsProviderError(err error) bool {
	_, ok := errors.AsType[*ProviderError](err)
	return ok
}
