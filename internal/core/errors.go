package core

import (
	"errors"
	"fmt"
)

// Kind classifies a hard failure.
type Kind string

const (
	KindSourceNotFound        Kind = "SourceNotFound"
	KindMalformedSource       Kind = "MalformedSource"
	KindConnectionUnavailable Kind = "ConnectionUnavailable"
	KindSchemaConflict        Kind = "SchemaConflict"
	KindWriteFailure          Kind = "WriteFailure"
	KindDownloadFailure       Kind = "DownloadFailure"
)

// Error is the failure type returned by every pipeline stage.
type Error struct {
	Kind Kind
	Op   string // Stage or operation that failed, e.g. "read source"
	Err  error  // Underlying cause, may be nil
}

// Sentinels for errors.Is. They match any *Error of the same Kind.
var (
	ErrSourceNotFound        = &Error{Kind: KindSourceNotFound}
	ErrMalformedSource       = &Error{Kind: KindMalformedSource}
	ErrConnectionUnavailable = &Error{Kind: KindConnectionUnavailable}
	ErrSchemaConflict        = &Error{Kind: KindSchemaConflict}
	ErrWriteFailure          = &Error{Kind: KindWriteFailure}
	ErrDownloadFailure       = &Error{Kind: KindDownloadFailure}
)

// E builds an *Error.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an *Error with a formatted cause.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return string(e.Kind)
	}
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
