package linker

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a link failed. Every kind is fatal.
type ErrorKind int

const (
	// ErrInput: truncated or malformed input files
	ErrInput ErrorKind = iota
	// ErrUsage: bad command line, unsupported target, missing library
	ErrUsage
	// ErrInternal: a linker bug
	ErrInternal
)

func (k ErrorKind) String() string {
	switch k {
	case ErrInput:
		return "input"
	case ErrUsage:
		return "usage"
	case ErrInternal:
		return "internal"
	default:
		return "unknown"
	}
}

type LinkError struct {
	Kind ErrorKind
	File string
	Msg  string
	Err  error
}

func (e *LinkError) Error() string {
	msg := e.Msg
	if e.File != "" {
		msg = e.File + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

func newInputError(format string, args ...any) *LinkError {
	return &LinkError{Kind: ErrInput, Msg: fmt.Sprintf(format, args...)}
}

func newUsageError(format string, args ...any) *LinkError {
	return &LinkError{Kind: ErrUsage, Msg: fmt.Sprintf(format, args...)}
}

func newInternalError(format string, args ...any) *LinkError {
	return &LinkError{Kind: ErrInternal, Msg: fmt.Sprintf(format, args...)}
}

// withFile attaches the name of the offending input, keeping an
// already attached one.
func withFile(err error, name string) error {
	var le *LinkError
	if errors.As(err, &le) {
		if le.File == "" {
			le.File = name
		}
		return err
	}
	return &LinkError{Kind: ErrInput, File: name, Msg: "cannot read", Err: err}
}

// IsKind reports whether err is a LinkError of kind k.
func IsKind(err error, k ErrorKind) bool {
	var le *LinkError
	return errors.As(err, &le) && le.Kind == k
}
