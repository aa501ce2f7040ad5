package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/nurpe/cnc-service/internal/repository"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidInput     = errors.New("invalid input")
	ErrConflict         = errors.New("conflict")
	ErrTransient        = errors.New("service unavailable")
)

// ValidationError carries one message per offending field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return fmt.Sprintf("%s: %s", ErrInvalidInput, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

type fieldErrors map[string]string

func (f fieldErrors) add(field, msg string) {
	if _, exists := f[field]; !exists {
		f[field] = msg
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationError{Fields: f}
}

// storageErr translates repository failures into the service error set.
func storageErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict),
		errors.Is(err, ErrInvalidInput), errors.Is(err, ErrPermissionDenied):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
}
