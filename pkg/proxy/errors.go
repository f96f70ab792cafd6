package proxy

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrInvalidShape is returned by Bind when shape is not a pointer to a struct
// of func fields.
var ErrInvalidShape = errors.New("proxy: shape must be a non-nil pointer to a struct of func fields")

// MemberNotFoundError is raised when a bound call has no matching member on
// the target. Bind itself never fails for this reason.
type MemberNotFoundError struct {
	Member     string
	TargetType string
}

func (e *MemberNotFoundError) Error() string {
	return fmt.Sprintf("proxy: %s has no member %s", e.TargetType, e.Member)
}

// MarshalError is raised when a value can't be converted between the caller's
// type and the target's type.
type MarshalError struct {
	Member string
	From   reflect.Type
	To     reflect.Type
	Reason string
}

func (e *MarshalError) Error() string {
	msg := fmt.Sprintf("proxy: cannot convert %s to %s", typeName(e.From), typeName(e.To))
	if e.Member != "" {
		msg = fmt.Sprintf("proxy: %s: cannot convert %s to %s", e.Member, typeName(e.From), typeName(e.To))
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// PanicError wraps a panic raised by the target while serving a bound call.
type PanicError struct {
	Member string
	Value  any
	Stack  []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("proxy: %s panicked: %v", e.Member, e.Value)
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
