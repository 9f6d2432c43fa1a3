package ctypes

import (
	"errors"
	"fmt"

	"github.com/jupiterrider/ffi"
)

var (
	ErrTooShort         = errors.New("too short")
	ErrBadCallKind      = errors.New("bad call kind")
	ErrBadReturnType    = errors.New("bad return type")
	ErrBadParameterType = errors.New("bad parameter type")

	ErrUnknownTypeCode = errors.New("unrecognised type code")
	ErrTypeMismatch    = errors.New("type mismatch")

	ErrArityMismatch = errors.New("arity mismatch")

	ErrNotCallable = errors.New("not callable")

	ErrAggregateConstructionFailed = errors.New("aggregate construction failed")
	ErrArgumentFetchFailed         = errors.New("argument fetch failed")

	ErrTrampolineFault = errors.New("trampoline fault")
	ErrReleased        = errors.New("callback already released")

	ErrPrep         = errors.New("libffi prep failed")
	ErrClosureAlloc = errors.New("libffi closure allocation failed")
)

// SignatureError reports a malformed signature string.
type SignatureError struct {
	Signature string
	Kind      error
	// Index is the 1-based parameter index for ErrBadParameterType.
	Index int
	Char  byte
}

func (e *SignatureError) Error() string {
	switch e.Kind {
	case ErrTooShort:
		return fmt.Sprintf("Invalid function signature: %q (too short)", e.Signature)
	case ErrBadCallKind:
		return fmt.Sprintf("Invalid function signature: '%c' (should be 'c' or 's')", e.Char)
	case ErrBadReturnType:
		return fmt.Sprintf("Invalid return type: '%c' (should be one of %q)", e.Char, ReturnCodes)
	case ErrBadParameterType:
		return fmt.Sprintf("Invalid argument type (arg %d): '%c' (should be one of %q)", e.Index, e.Char, ParamCodes)
	}
	return fmt.Sprintf("Invalid function signature: %q", e.Signature)
}

func (e *SignatureError) Unwrap() error { return e.Kind }

// TypeError reports an unknown type code or a host value that does not fit
// the native slot it was aimed at.
type TypeError struct {
	Kind error
	Code byte
	// Index is the 0-based parameter index, or -1 when not tied to one.
	Index  int
	Type   *TypeDescriptor
	Got    any
	Detail string
}

func (e *TypeError) Error() string {
	if e.Kind == ErrUnknownTypeCode {
		return fmt.Sprintf("Unrecognised type: %q", e.Code)
	}
	msg := "type mismatch"
	if e.Index >= 0 {
		msg = fmt.Sprintf("argument %d: type mismatch", e.Index)
	}
	if e.Type != nil {
		msg += fmt.Sprintf(": cannot convert %T to %s", e.Got, e.Type.Name)
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *TypeError) Unwrap() error { return e.Kind }

// ArityError reports an argument count that differs from the signature.
type ArityError struct {
	Expected int
	Actual   int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("argument count mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ArityError) Unwrap() error { return ErrArityMismatch }

// CallableError reports a host value that cannot be invoked.
type CallableError struct {
	Value any
}

func (e *CallableError) Error() string {
	return fmt.Sprintf("%T is not callable", e.Value)
}

func (e *CallableError) Unwrap() error { return ErrNotCallable }

// MarshalError reports a failure moving values through the host call bridge.
type MarshalError struct {
	Kind error
	// Index is the offending argument or element index, or -1.
	Index int
	Err   error
}

func (e *MarshalError) Error() string {
	msg := e.Kind.Error()
	if e.Index >= 0 {
		msg = fmt.Sprintf("%s at index %d", msg, e.Index)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MarshalError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// CallbackError reports a fault recorded at a trampoline boundary, or misuse
// of a released binding.
type CallbackError struct {
	Kind      error
	Signature string
	Err       error
}

func (e *CallbackError) Error() string {
	msg := "callback"
	if e.Signature != "" {
		msg += " " + e.Signature
	}
	msg += ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CallbackError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// FFIError wraps a non-OK libffi status.
type FFIError struct {
	Op     string
	Status ffi.Status
}

func (e *FFIError) Error() string {
	var reason string
	switch e.Status {
	case ffi.BadTypedef:
		reason = "bad typedef"
	case ffi.BadAbi:
		reason = "bad abi"
	default:
		reason = fmt.Sprintf("status %d", e.Status)
	}
	return fmt.Sprintf("%s failed: %s", e.Op, reason)
}

func (e *FFIError) Unwrap() error { return ErrPrep }
