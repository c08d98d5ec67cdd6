package common

import (
	"errors"
	"fmt"
)

// ErrTransient and ErrPermanent are the two classes the worker retries on.
var (
	ErrTransient = errors.New("transient error")
	ErrPermanent = errors.New("permanent error")
)

// transient is implemented by errors that know whether a retry can help,
// such as *response.Failure.
type transient interface {
	Transient() bool
}

// WrapTransient annotates an error so callers can detect transient failures.
// The original error stays reachable through errors.Is and errors.As.
func WrapTransient(err error) error {
	if err == nil {
		return ErrTransient
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// WrapPermanent annotates an error as permanent.
func WrapPermanent(err error) error {
	if err == nil {
		return ErrPermanent
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// Classify wraps err as transient when an error in its chain reports itself
// transient and as permanent otherwise. Already classified errors are
// returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, ErrPermanent) {
		return err
	}
	var t transient
	if errors.As(err, &t) && t.Transient() {
		return WrapTransient(err)
	}
	return WrapPermanent(err)
}
