package mailer

import (
	"errors"
	"fmt"
)

// Class splits channel failures into the two retry behaviors the engine
// cares about. Transient failures resolve themselves (network blips,
// provider throttling); permanent ones (rejected or malformed
// recipients) never will, however often they are retried.
type Class int

const (
	ClassTransient Class = iota
	ClassPermanent
)

func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// ChannelError wraps an outbound channel failure with its class.
type ChannelError struct {
	Class Class
	Err   error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("%s channel error: %v", e.Class, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a retryable channel failure.
func Transient(err error) error {
	return &ChannelError{Class: ClassTransient, Err: err}
}

// Permanent wraps err as a channel failure retrying cannot fix.
func Permanent(err error) error {
	return &ChannelError{Class: ClassPermanent, Err: err}
}

// IsPermanent reports whether err carries a permanent channel class.
// Unclassified errors are treated as transient so nothing is ever
// written off on a guess.
func IsPermanent(err error) bool {
	var chErr *ChannelError
	if errors.As(err, &chErr) {
		return chErr.Class == ClassPermanent
	}
	return false
}
