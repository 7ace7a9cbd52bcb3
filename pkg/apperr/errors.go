// Package apperr holds the error kinds shared by storage, service and transport
// layers. Match them with errors.Is:
//
//	if errors.Is(err, apperr.ErrCapacity) { ... }
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation error")
	ErrCapacity   = errors.New("capacity error")
	ErrDuplicate  = errors.New("duplicate error")
	ErrNotFound   = errors.New("not found")
	ErrTransport  = errors.New("transport error")
	ErrStore      = errors.New("store error")
)

type Error struct {
	kind error
	msg  string
	err  error
}

func (e *Error) Error() string {
	switch {
	case e.msg != "" && e.err != nil:
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.err)
	case e.msg != "":
		return fmt.Sprintf("%s: %s", e.kind, e.msg)
	case e.err != nil:
		return fmt.Sprintf("%s: %v", e.kind, e.err)
	}
	return e.kind.Error()
}

func (e *Error) Is(target error) bool { return target == e.kind }

func (e *Error) Unwrap() error { return e.err }

// Kind returns the sentinel this error belongs to.
func (e *Error) Kind() error { return e.kind }

func Validation(format string, args ...interface{}) error {
	return &Error{kind: ErrValidation, msg: fmt.Sprintf(format, args...)}
}

func Capacity(format string, args ...interface{}) error {
	return &Error{kind: ErrCapacity, msg: fmt.Sprintf(format, args...)}
}

func Duplicate(format string, args ...interface{}) error {
	return &Error{kind: ErrDuplicate, msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) error {
	return &Error{kind: ErrNotFound, msg: fmt.Sprintf(format, args...)}
}

func Transport(err error) error {
	if err == nil {
		return nil
	}
	return &Error{kind: ErrTransport, err: err}
}

// Store wraps a datastore failure. Errors that already carry a kind pass through.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{kind: ErrStore, msg: op, err: err}
}

// Message returns the human readable part of a validation-style error, or "".
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.msg
	}
	return ""
}
