package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound        = errors.New("no best positions recorded")
	ErrInvalidPosition = errors.New("invalid position")
	ErrClosed          = errors.New("store closed")
)
