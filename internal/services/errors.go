package services

import "errors"

// ErrValidation is returned when input is missing required fields or holds
// values outside the accepted set.
var ErrValidation = errors.New("validation failed")
