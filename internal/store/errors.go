package store

import "fmt"

// PersistenceError reports a failed durable write. The in-memory registry is
// rolled back to its last persisted state before this error is returned, so
// callers can trust that memory never claims durability it does not have.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("chat registry %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// CorruptError reports that the backing document exists but cannot be used.
// The file is never modified or deleted on this path; startup must refuse to
// proceed until the operator repairs it.
type CorruptError struct {
	Path   string
	Reason string
	Err    error
}

func (e *CorruptError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chat registry %s is corrupt: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("chat registry %s is corrupt: %s", e.Path, e.Reason)
}

func (e *CorruptError) Unwrap() error {
	return e.Err
}
