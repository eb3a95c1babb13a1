package repositories

import "errors"

var (
	// ErrNotFound is returned when the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned for illegal state transitions and for
	// attempts to create a second pending handoff on one conversation.
	ErrConflict = errors.New("conflict")

	// ErrDuplicateDelivery is returned when a message with an already
	// persisted provider message id is appended again. Webhook retries
	// hit this; callers treat it as success and do nothing further.
	ErrDuplicateDelivery = errors.New("duplicate delivery")
)
