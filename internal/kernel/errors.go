package kernel

import (
	"errors"
	"fmt"
)

// ErrorKind is the taxonomy every public operation's error unwraps to.
type ErrorKind uint8

const (
	NotFound ErrorKind = iota
	Unauthorized
	InvalidInput
	InternalError
	ResourceLimit
	InvalidState
	InsufficientFunds
	NetworkError
	AlreadyExists
	PaginationError
	WasmSizeExceeded
	TimeRangeError
	PermissionDenied
	RateLimitExceeded
)

func (k ErrorKind) String() string {
	switch k {
	case NotFound:
		return "NotFound"
	case Unauthorized:
		return "Unauthorized"
	case InvalidInput:
		return "InvalidInput"
	case InternalError:
		return "InternalError"
	case ResourceLimit:
		return "ResourceLimit"
	case InvalidState:
		return "InvalidState"
	case InsufficientFunds:
		return "InsufficientFunds"
	case NetworkError:
		return "NetworkError"
	case AlreadyExists:
		return "AlreadyExists"
	case PaginationError:
		return "PaginationError"
	case WasmSizeExceeded:
		return "WasmSizeExceeded"
	case TimeRangeError:
		return "TimeRangeError"
	case PermissionDenied:
		return "PermissionDenied"
	case RateLimitExceeded:
		return "RateLimitExceeded"
	default:
		return "Unknown"
	}
}

// Error is the Go rendering of the spec's tagged Err(kind, message) result.
// Every exported operation that can fail returns one of these via errors.As.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewError constructs a kernel error with the given kind and message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Is lets errors.Is match on kind alone, e.g. errors.Is(err, &kernel.Error{Kind: kernel.NotFound}).
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// KindOf extracts the ErrorKind from err, defaulting to InternalError for
// errors that did not originate as a *kernel.Error — this is the boundary
// translation point for downstream failures (ports, storage) that surface as
// plain errors.
func KindOf(err error) ErrorKind {
	if err == nil {
		return 0
	}
	var kerr *Error
	if errors.As(err, &kerr) {
		return kerr.Kind
	}
	return InternalError
}

// Sentinel errors used internally with errors.Is where a lightweight check
// (no message) suffices, mirroring the teacher's package-level error vars.
var (
	ErrPaused         = &Error{Kind: InvalidState, Message: "paused"}
	ErrAnonymous      = &Error{Kind: Unauthorized, Message: "anonymous caller"}
	ErrNotAuthorized  = &Error{Kind: Unauthorized, Message: "caller not authorized"}
	ErrLockNotActive  = &Error{Kind: InvalidState, Message: "lock is not active"}
	ErrNoActiveLock   = &Error{Kind: NotFound, Message: "no active lock for challenge"}
	ErrAlreadyMonitor = &Error{Kind: InvalidState, Message: "already monitoring"}
	ErrNotMonitoring  = &Error{Kind: InvalidState, Message: "not monitoring"}
)
