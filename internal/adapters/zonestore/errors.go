package zonestore

import "errors"

var (
	// ErrNoGeneration is returned by Load before the first commit.
	ErrNoGeneration = errors.New("no committed zone generation")
	// ErrNilGeneration is returned by Replace when given nil.
	ErrNilGeneration = errors.New("nil zone generation")
	// ErrPathRequired is returned by OpenBadger for an on-disk store without a path.
	ErrPathRequired = errors.New("path is required for persistent zone store")
)
