package observability

import (
	"fmt"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// RecoverPanic recovers from a panic and logs it with its stack.
//
// Call it directly in a defer statement:
//
//	func callPlugin() {
//	    defer observability.RecoverPanic(log, "mod entry")
//	    // ... plugin code that might panic
//	}
//
// The panic is not re-raised.
func RecoverPanic(logger logrus.FieldLogger, context string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("PANIC recovered")
	}
}

// RecoverPanicWithCallback recovers from a panic, logs it, then runs callback.
// The callback only runs when a panic occurred.
//
//	defer observability.RecoverPanicWithCallback(log, "mod dispose", func() {
//	    meta.ReleaseFakeContentPacks()
//	})
func RecoverPanicWithCallback(logger logrus.FieldLogger, context string, callback func()) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("PANIC recovered")
		if callback != nil {
			callback()
		}
	}
}

// PanicError is a recovered panic converted to an error.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes a panic value that was itself an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// MustRecover converts a recovered value into an error, or nil when r is nil.
//
//	func runEntry(mod sdk.Mod, h sdk.Helper) (err error) {
//	    defer func() {
//	        if r := recover(); r != nil {
//	            err = observability.MustRecover(r)
//	        }
//	    }()
//	    return mod.Entry(h)
//	}
func MustRecover(r any) error {
	if r == nil {
		return nil
	}
	return &PanicError{Value: r, Stack: string(debug.Stack())}
}
