package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid ID format")

	// ErrDateTaken is returned when the hall already has an active booking on that day.
	ErrDateTaken = errors.New("hall already has an active booking on that day")

	ErrHallNotFound = errors.New("hall not found")

	ErrUserNotFound = errors.New("user not found")

	// ErrStaleTransition means the conditional status update matched nothing
	// because another request moved the booking first.
	ErrStaleTransition = errors.New("booking status changed concurrently")
)
