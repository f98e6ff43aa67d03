package ledger

import "errors"

var (
	// ErrValidation is returned for missing or malformed input.
	ErrValidation = errors.New("ledger: validation failed")

	// ErrNotFound is returned when no ledger document exists for the kind.
	ErrNotFound = errors.New("ledger: not found")

	// ErrAlreadyExists is returned when seeding a kind that already has a document.
	ErrAlreadyExists = errors.New("ledger: already exists")

	// ErrNoFreeResource is returned when an assignment selects no resource.
	ErrNoFreeResource = errors.New("ledger: no resource available")

	// ErrVersionConflict is returned by a Repository when the stored version moved.
	ErrVersionConflict = errors.New("ledger: version conflict")

	// ErrConflict is returned when retries on version conflicts are exhausted.
	ErrConflict = errors.New("ledger: concurrent update conflict")

	// ErrAborted is returned when the caller's context ends mid-operation. It
	// also wraps the context error itself.
	ErrAborted = errors.New("ledger: request aborted")

	// ErrPersistence wraps store failures.
	ErrPersistence = errors.New("ledger: persistence failure")
)
