package files

import "errors"

var (
	ErrNotFound     = errors.New("file not found")
	ErrInvalidInput = errors.New("invalid input")
)

const (
	ErrorCodeValidation = "validation_error"
	ErrorCodeNotFound   = "not_found"
	ErrorCodeStorage    = "storage_error"
	ErrorCodeInternal   = "internal_error"
)
