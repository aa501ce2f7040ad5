package repository

import "errors"

// ErrNotFound is returned by every repository implementation when a row is missing.
var ErrNotFound = errors.New("record not found")
