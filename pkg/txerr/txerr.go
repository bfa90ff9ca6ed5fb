// Package txerr is the transaction engine's error-annotation layer.
//
// It re-exports github.com/pkg/errors so that call sites never import that
// package directly, and adds an As() that also unwraps one level of pointer
// indirection, which the standard errors.As refuses to do.
package txerr

import (
	"reflect"

	"github.com/pkg/errors"
)

// New returns an error annotated with a stack trace at the point New was called.
func New(msg string) error {
	return errors.New(msg)
}

// Errorf formats according to a format specifier and returns the resulting
// error, annotated with a stack trace.
func Errorf(format string, args ...interface{}) error {
	return errors.Errorf(format, args...)
}

// Wrap annotates err with a message and a stack trace. Returns nil if err is nil.
func Wrap(err error, msg string) error {
	return errors.Wrap(err, msg)
}

// Wrapf annotates err with a formatted message and a stack trace.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// Cause returns the underlying cause of err, if it implements Causer.
func Cause(err error) error {
	return errors.Cause(err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target's type and, if
// one is found, sets target to that error value and returns true.
//
// Unlike errors.As, target may point directly at a concrete error type
// (rather than an interface or a pointer-to-error), in which case As
// allocates the extra indirection standard errors.As requires.
func As(err error, target interface{}) bool {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		panic("txerr: target must be a non-nil pointer")
	}
	if errors.As(err, target) {
		return true
	}
	elem := v.Elem()
	if elem.Kind() == reflect.Ptr {
		return false
	}
	ptrToElem := reflect.New(reflect.PointerTo(elem.Type()))
	if !errors.As(err, ptrToElem.Interface()) {
		return false
	}
	inner := ptrToElem.Elem().Elem()
	if !inner.IsValid() {
		return false
	}
	elem.Set(inner)
	return true
}
