package resilience

import (
	"errors"
	"fmt"
)

var (
	// ErrTransient marks failures worth retrying: timeouts, connection errors, 5xx answers.
	ErrTransient = errors.New("transient failure")
	// ErrUnavailable is returned once retries are exhausted or the breaker refuses the call.
	ErrUnavailable = errors.New("dependency unavailable")
)

func Transient(err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%w: %w", ErrTransient, err)
}

func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
