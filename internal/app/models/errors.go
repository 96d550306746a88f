package models

import "errors"

// Domain specific errors for discovery and ranking.
var (
	ErrNotFound   = errors.New("requested item not found")
	ErrConflict   = errors.New("item already exists or conflict")
	ErrValidation = errors.New("validation failed")
	ErrDataAccess = errors.New("data access failed")
)
