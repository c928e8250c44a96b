package bt

import (
	"errors"
	"fmt"
)

// Kind categorizes a discovery failure independently of the backend.
type Kind int

const (
	// KindUnknown is any failure that could not be classified.
	KindUnknown Kind = iota
	// KindPoweredOff means the local adapter is switched off.
	KindPoweredOff
	// KindInvalidAdapter means the adapter is missing or is not the one requested.
	KindInvalidAdapter
	// KindUnsupportedMethod means the backend cannot scan with the requested methods.
	KindUnsupportedMethod
	// KindMissingPermissions means the OS denied access to the radio.
	KindMissingPermissions
	// KindInputOutput means a native call was rejected or a query failed.
	KindInputOutput
)

// String returns a human-readable name for the kind
func (k Kind) String() string {
	switch k {
	case KindUnknown:
		return "Unknown Error"
	case KindPoweredOff:
		return "Powered Off"
	case KindInvalidAdapter:
		return "Invalid Adapter"
	case KindUnsupportedMethod:
		return "Unsupported Discovery Method"
	case KindMissingPermissions:
		return "Missing Permissions"
	case KindInputOutput:
		return "Input/Output Error"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is a classified discovery error.
type Error struct {
	Kind    Kind    // Category of error
	Op      string  // Operation that failed, e.g. "start classic scan"
	Address Address // Remote device, zero when not device specific
	Err     error   // Underlying error (if any)
}

// NewError returns an *Error of kind k for op wrapping err.
func NewError(k Kind, op string, err error) *Error {
	return &Error{Kind: k, Op: op, Err: err}
}

// NewDeviceError is NewError for a failure tied to one remote device.
func NewDeviceError(k Kind, op string, addr Address, err error) *Error {
	return &Error{Kind: k, Op: op, Address: addr, Err: err}
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if !e.Address.IsZero() {
		msg += " (" + e.Address.String() + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrPoweredOff)
// works regardless of Op and Address.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Address.IsZero() && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrPoweredOff         = &Error{Kind: KindPoweredOff}
	ErrInvalidAdapter     = &Error{Kind: KindInvalidAdapter}
	ErrUnsupportedMethod  = &Error{Kind: KindUnsupportedMethod}
	ErrMissingPermissions = &Error{Kind: KindMissingPermissions}
	ErrInputOutput        = &Error{Kind: KindInputOutput}
	ErrUnknown            = &Error{Kind: KindUnknown}
)

// KindOf classifies err. Errors that carry no *Error are KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Classify returns err as an *Error. An err that already carries an *Error
// keeps its kind; anything else is wrapped with fallback.
func Classify(err error, fallback Kind, op string) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewError(fallback, op, err)
}
