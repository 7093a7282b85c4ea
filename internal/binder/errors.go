package binder

import (
	"errors"
	"fmt"
)

var (
	ErrNameRequired = errors.New("name is required")
	ErrNoSelection  = errors.New("no saved request selected")
)

// InvalidFormError is returned when the form does not hold a usable request
type InvalidFormError struct {
	Err error
}

func (e *InvalidFormError) Error() string {
	if e.Err == nil {
		return "invalid request"
	}
	return fmt.Sprintf("invalid request: %v", e.Err)
}

func (e *InvalidFormError) Unwrap() error {
	return e.Err
}

// StaleSelectionError reports a selected id that is no longer stored.
// The selection has already been reset when it is returned.
type StaleSelectionError struct {
	ID string
}

func (e *StaleSelectionError) Error() string {
	return fmt.Sprintf("saved request %s not found, selection cleared", e.ID)
}

// IsStale reports whether err is a StaleSelectionError
func IsStale(err error) bool {
	var stale *StaleSelectionError
	return errors.As(err, &stale)
}
