package models

import "errors"

var (
	// ErrNotFound is returned by stores when the requested document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicatePosting is returned when a matching bonus already exists for a member and cycle.
	ErrDuplicatePosting = errors.New("matching bonus already posted for cycle")
)
