package services

import (
	"errors"
	"fmt"

	"pkm-review-api/models"
)

var (
	ErrUnknownToggle     = errors.New("unknown toggle")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrPhaseClosed       = errors.New("phase closed")
	ErrForbidden         = errors.New("forbidden")
	ErrPersistence       = errors.New("persistence failure")
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrPhaseToggleBusy   = errors.New("another phase change is in progress")

	// ErrIncompleteAssessment describes the policy outcome of finalizing a
	// proposal with missing entries. Finalization resolves it to
	// not_reviewed instead of returning it.
	ErrIncompleteAssessment = errors.New("incomplete assessment")
)

// InvalidTransitionError names the rejected status pair.
type InvalidTransitionError struct {
	From models.ProposalStatus
	To   models.ProposalStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// PersistenceError wraps a storage layer failure with the failing operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func persistenceErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	// Domain errors raised inside a transaction callback pass through untouched.
	for _, domain := range []error{ErrUnknownToggle, ErrInvalidTransition, ErrPhaseClosed, ErrForbidden, ErrNotFound, ErrValidation, ErrPhaseToggleBusy, ErrIncompleteAssessment} {
		if errors.Is(err, domain) {
			return err
		}
	}
	return &PersistenceError{Op: op, Err: err}
}

func validationErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ErrorCode returns the taxonomy tag reported to API clients.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownToggle):
		return "unknown_toggle"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrPhaseClosed):
		return "phase_closed"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrIncompleteAssessment):
		return "incomplete_assessment"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation_failed"
	case errors.Is(err, ErrPhaseToggleBusy):
		return "phase_busy"
	case errors.Is(err, ErrPersistence):
		return "persistence_failure"
	default:
		return "internal_error"
	}
}

// UnknownToggle wraps ErrUnknownToggle for a toggle name that did not resolve.
func UnknownToggle(name string) error {
	return fmt.Errorf("%w: %q", ErrUnknownToggle, name)
}
