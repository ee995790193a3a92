package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure surfaced by the optimizer pipeline wraps exactly
// one of these, so callers can classify with errors.Is.
var (
	// ErrInput marks malformed tickers, dates or optimizer parameters.
	ErrInput = errors.New("input error")
	// ErrData marks missing or insufficient market data.
	ErrData = errors.New("data error")
	// ErrNumeric marks a degenerate objective evaluation (zero or negative risk).
	ErrNumeric = errors.New("numeric error")
	// ErrOptimization marks a solver that did not converge.
	ErrOptimization = errors.New("optimization error")
	// ErrProvider marks a failing external rate or price provider.
	ErrProvider = errors.New("provider error")
)

// Error is a classified pipeline error.
type Error struct {
	Kind error  // one of the Err* kinds above
	Op   string // operation that failed, e.g. "returns.build"
	Msg  string
	Err  error // underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg != "" {
			msg += ": "
		}
		msg += e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// InputError creates an ErrInput-kinded error.
func InputError(op, format string, args ...interface{}) error {
	return &Error{Kind: ErrInput, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// DataError creates an ErrData-kinded error.
func DataError(op, format string, args ...interface{}) error {
	return &Error{Kind: ErrData, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// NumericError creates an ErrNumeric-kinded error.
func NumericError(op, format string, args ...interface{}) error {
	return &Error{Kind: ErrNumeric, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// OptimizationError creates an ErrOptimization-kinded error.
func OptimizationError(op, format string, args ...interface{}) error {
	return &Error{Kind: ErrOptimization, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// ProviderError wraps a provider failure.
func ProviderError(op string, err error) error {
	return &Error{Kind: ErrProvider, Op: op, Err: err}
}

// KindOf returns the error kind of err, or nil if err is not classified.
func KindOf(err error) error {
	for _, kind := range []error{ErrInput, ErrData, ErrNumeric, ErrOptimization, ErrProvider} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
