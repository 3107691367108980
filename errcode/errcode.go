package errcode

// Code is a stable result code returned by the peripheral managers.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes.
const (
	OK Code = "ok"

	InvalidIndex      Code = "invalid_index"
	NotConfigured     Code = "not_configured"
	AlreadyConfigured Code = "already_configured"
	InvalidCallback   Code = "invalid_callback"
	InvalidBaseUnit   Code = "invalid_base_unit"
	NotOpen           Code = "not_open"

	AlreadyOpen   Code = "already_open"
	Reentrant     Code = "reentrant" // guard or blocking call from a dispatched callback
	Busy          Code = "busy"
	InvalidConfig Code = "invalid_config"

	Error Code = "error" // generic fallback
)

// E wraps a Code with the failing operation and an optional cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}

// Unwrap returns the cause, or the Code itself so errors.Is matches it.
func (e *E) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.C
}

// Is matches the wrapped Code even when a cause is set.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

func (e *E) Code() Code { return e.C }

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}
