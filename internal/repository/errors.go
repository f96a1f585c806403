package repository

import "errors"

// Common repository errors
var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateEmail is returned when trying to create a user with an existing email
	ErrDuplicateEmail = errors.New("user with this email already exists")

	// ErrDuplicatePhone is returned when trying to claim a phone number owned by another user
	ErrDuplicatePhone = errors.New("user with this phone already exists")

	// ErrDuplicateSession is returned when trying to create a session with an existing id
	ErrDuplicateSession = errors.New("session with this id already exists")
)
