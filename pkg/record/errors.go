package record

import "errors"

// Sentinel errors returned by Store implementations.
var (
	// ErrNotFound is returned when no row matches the requested primary key.
	ErrNotFound = errors.New("record: not found")

	// ErrIntegrity is returned when a write violates a unique, not-null or
	// foreign key constraint.
	ErrIntegrity = errors.New("record: integrity violation")

	// ErrInvalidValue is returned when a value cannot be stored in its column.
	ErrInvalidValue = errors.New("record: invalid value")

	// ErrClosed is returned when operating on a closed store.
	ErrClosed = errors.New("record: store is closed")
)

// IsPersistenceError reports whether err is an integrity or invalid-value
// failure, the two kinds reconciliation converts into form errors.
func IsPersistenceError(err error) bool {
	return errors.Is(err, ErrIntegrity) || errors.Is(err, ErrInvalidValue)
}
