package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a record with the same key already exists.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrForeignKeyViolation is returned when a record references a parent
	// that does not exist.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
)

// IsIntegrityViolation reports whether err was caused by a duplicate key or
// a dangling reference. Such calls leave the store unchanged.
func IsIntegrityViolation(err error) bool {
	return errors.Is(err, ErrDuplicate) || errors.Is(err, ErrForeignKeyViolation)
}

// ErrorKind maps persistence errors to a stable logging label.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDuplicate):
		return "duplicate"
	case errors.Is(err, ErrForeignKeyViolation):
		return "foreign_key_violation"
	}
	return "internal"
}
