package ppdberr

import (
	"errors"
	"fmt"
)

// Kind is the closed taxonomy of failure categories the storage core
// returns, grouped by the boundary that raises them.
type Kind int

const (
	// Invalid use.
	InvalidArgument Kind = iota
	NullPointer
	BufferTooSmall
	NotSupported
	InvalidState

	// Resource.
	NoMemory
	MemoryLimit
	Busy
	Full
	Timeout

	// Not-found / conflict.
	NotFound
	Exists
	Conflict
	Aborted

	// Durability.
	Io
	Corrupted
	PathTooLong
	LimitExceeded

	// System.
	System
	Unknown
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid_argument"
	case NullPointer:
		return "null_pointer"
	case BufferTooSmall:
		return "buffer_too_small"
	case NotSupported:
		return "not_supported"
	case InvalidState:
		return "invalid_state"
	case NoMemory:
		return "no_memory"
	case MemoryLimit:
		return "memory_limit"
	case Busy:
		return "busy"
	case Full:
		return "full"
	case Timeout:
		return "timeout"
	case NotFound:
		return "not_found"
	case Exists:
		return "exists"
	case Conflict:
		return "conflict"
	case Aborted:
		return "aborted"
	case Io:
		return "io"
	case Corrupted:
		return "corrupted"
	case PathTooLong:
		return "path_too_long"
	case LimitExceeded:
		return "limit_exceeded"
	case System:
		return "system"
	default:
		return "unknown"
	}
}

// Error is a core error carrying a Kind plus an optional message.
type Error struct {
	Kind Kind
	Msg  string
	err  error
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.err }

// Is lets errors.Is(err, ppdberr.New(SomeKind)) match any *Error of the same
// Kind, independent of message or wrapped cause.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New builds a bare *Error of the given kind.
func New(kind Kind) *Error { return &Error{Kind: kind} }

// Newf builds a *Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind to an underlying error, preserving it for errors.Unwrap.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), err: err}
}

// KindOf extracts the Kind of err, defaulting to Unknown if err does not
// wrap a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Sentinels for the common cases, so callers can write
// errors.Is(err, ppdberr.ErrNotFound) without constructing a Kind value.
var (
	ErrNotFound      = New(NotFound)
	ErrExists        = New(Exists)
	ErrConflict      = New(Conflict)
	ErrAborted       = New(Aborted)
	ErrInvalidState  = New(InvalidState)
	ErrTimeout       = New(Timeout)
	ErrCorrupted     = New(Corrupted)
	ErrInvalidArg    = New(InvalidArgument)
	ErrMemoryLimit   = New(MemoryLimit)
	ErrLimitExceeded = New(LimitExceeded)
)
