package oracle

import (
	"errors"
	"fmt"
)

// Kind classifies oracle failures.
type Kind int

const (
	KindTransport Kind = iota // network or client failure
	KindStatus                // non-2xx answer from the service
	KindFormat                // answer did not decode into the expected shape
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindStatus:
		return "status"
	case KindFormat:
		return "format"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is returned by every oracle backend.
type Error struct {
	Call   string // hypothesize, synthesize theory, update belief, chat
	Kind   Kind
	Status int // HTTP status for KindStatus
	Err    error
}

func (e *Error) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("oracle %s: status %d: %v", e.Call, e.Status, e.Err)
	}
	return fmt.Sprintf("oracle %s: %s: %v", e.Call, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func formatError(call string, err error) *Error {
	return &Error{Call: call, Kind: KindFormat, Err: err}
}

func transportError(call string, err error) *Error {
	return &Error{Call: call, Kind: KindTransport, Err: err}
}

func statusError(call string, status int, msg string) *Error {
	return &Error{Call: call, Kind: KindStatus, Status: status, Err: errors.New(msg)}
}

// IsFormat reports whether err is an oracle answer that failed to decode.
func IsFormat(err error) bool { return isKind(err, KindFormat) }

// IsTransport reports whether err is a connection-level oracle failure.
func IsTransport(err error) bool { return isKind(err, KindTransport) }

// IsStatus reports whether err is an error status from the oracle service.
func IsStatus(err error) bool { return isKind(err, KindStatus) }

func isKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}
