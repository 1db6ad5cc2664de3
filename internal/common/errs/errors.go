// Package errs defines the engine error taxonomy. Callers match with
// errors.As; DecodeError and TransportError wrap their cause.
package errs

import "fmt"

// ConfigError marks missing or invalid required configuration. Always fatal
// to the calling operation.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "config: " + e.Msg }

func Configf(format string, args ...interface{}) error {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError marks a missing snapshot, vehicle, route, trip or stop that
// the caller asked for by identifier.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// InvalidStateError marks an entity that exists but cannot serve the request,
// e.g. a reference vehicle without coordinates.
type InvalidStateError struct {
	Msg string
}

func (e *InvalidStateError) Error() string { return "invalid state: " + e.Msg }

func InvalidStatef(format string, args ...interface{}) error {
	return &InvalidStateError{Msg: fmt.Sprintf(format, args...)}
}

// DecodeError marks a malformed protobuf or unreadable CSV. Fatal to the
// specific file, not to the surrounding snapshot or table-set load.
type DecodeError struct {
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func Decode(source string, err error) error {
	return &DecodeError{Source: source, Err: err}
}

// TransportError marks an HTTP, TLS or timeout failure. Fatal to the fetch
// operation; partial downloads must never reach the canonical path.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func Transport(op string, err error) error {
	return &TransportError{Op: op, Err: err}
}
