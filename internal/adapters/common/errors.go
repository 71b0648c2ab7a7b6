package common

import (
	"errors"
	"fmt"
)

// Failure classes for provider errors. Nothing is retried; the class is
// logged so operators can tell a bad address from a provider outage.
var (
	ErrTransient = errors.New("transient provider failure")
	ErrPermanent = errors.New("permanent provider failure")
)

// WrapTransient marks err as a transient provider failure.
func WrapTransient(err error) error {
	if err == nil {
		return ErrTransient
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// WrapPermanent marks err as a permanent provider failure.
func WrapPermanent(err error) error {
	if err == nil {
		return ErrPermanent
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// FailureClass returns "permanent", "transient" or "unknown" for logging.
func FailureClass(err error) string {
	switch {
	case errors.Is(err, ErrPermanent):
		return "permanent"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "unknown"
	}
}
