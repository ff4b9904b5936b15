package voicecall

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied is returned when the microphone (or location)
	// access is refused. It is never retried.
	ErrPermissionDenied = errors.New("voicecall: permission denied")

	// ErrHandshakeTimeout is returned when dialing and the handshake do not
	// finish within Config.HandshakeTimeout.
	ErrHandshakeTimeout = errors.New("voicecall: handshake timeout")

	// ErrTransport wraps socket level failures.
	ErrTransport = errors.New("voicecall: transport error")

	// ErrDecode marks a malformed inbound frame. It never ends a call.
	ErrDecode = errors.New("voicecall: decode error")

	// ErrConfigMissing is returned when a required setting such as the
	// deployment id is absent. It is never retried.
	ErrConfigMissing = errors.New("voicecall: config missing")

	// ErrStopped is recorded when a call ends because Stop was called.
	ErrStopped = errors.New("voicecall: stopped")

	// ErrInvalidTransition is returned for a state change the lifecycle
	// does not allow.
	ErrInvalidTransition = errors.New("voicecall: invalid state transition")
)

// DecodeError describes a malformed inbound frame.
type DecodeError struct {
	// Reason is a short description of what could not be decoded.
	Reason string
	// Err is the underlying parser error, if any.
	Err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("voicecall: decode %s: %v", e.Reason, e.Err)
	}
	return "voicecall: decode " + e.Reason
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrDecode) true for every DecodeError.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

func decodeErr(reason string, err error) error {
	return &DecodeError{Reason: reason, Err: err}
}

// transportErr wraps err so that errors.Is(err, ErrTransport) holds while the
// cause stays reachable.
func transportErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransport, op, err)
}

// retryable reports whether a failed connection attempt may be retried.
func retryable(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrHandshakeTimeout)
}
