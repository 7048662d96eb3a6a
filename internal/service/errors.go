package service

import (
	"errors"
	"fmt"

	"lpr-dashboard/internal/backend"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrBackend      = errors.New("backend request failed")
)

// ValidationError carries the operator-facing message of a rejected input and,
// for forms, the message of each offending field.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// backendErr classifies an error returned by the backend client.
func backendErr(op string, err error) error {
	if errors.Is(err, backend.ErrNotFound) {
		return fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrBackend, err)
}

// Message returns the text shown to the operator for err.
func Message(err error) string {
	var validation *ValidationError
	if errors.As(err, &validation) {
		return validation.Message
	}
	var status *backend.StatusError
	if errors.As(err, &status) {
		return status.Message()
	}
	if errors.Is(err, ErrBackend) {
		return "backend unavailable"
	}
	return err.Error()
}
