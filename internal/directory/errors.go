package directory

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound means the directory no longer knows the entity. The entity's
	// local state is cleaned up and the lookup is not retried.
	ErrNotFound = errors.New("entity not found in directory")

	// ErrUnresolved means the lookup kept failing transiently until the retry
	// budget ran out. The entity is skipped for this cycle only.
	ErrUnresolved = errors.New("entity could not be resolved")
)

// RateLimitedError is returned by a Source when the directory asks the caller
// to slow down.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("directory rate limited, retry after %s", e.RetryAfter)
}

// IsNotFound reports whether err is a permanent lookup failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnresolved reports whether err is a transient lookup failure.
func IsUnresolved(err error) bool {
	return errors.Is(err, ErrUnresolved)
}
