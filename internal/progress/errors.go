package progress

import (
	"errors"
	"fmt"
)

var (
	// ErrNoState is returned by a Storage that has never been written.
	ErrNoState = errors.New("no progress state stored")
	// ErrOutOfOrderCompletion rejects a completion dated before the last one.
	ErrOutOfOrderCompletion = errors.New("completion dated before last completion")
	// ErrInvalidCompletion rejects negative XP or focus time, or a grant past
	// MaxExperience.
	ErrInvalidCompletion = errors.New("invalid completion")
)

// StorageError reports a failed read or write of the persisted state. A write
// failure never rolls back the in-memory update; the next mutation rewrites
// the whole record.
type StorageError struct {
	Op  string // "read", "decode" or "write"
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("progress %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
