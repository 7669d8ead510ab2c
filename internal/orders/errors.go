package orders

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrUnauthenticated       = errors.New("unauthenticated")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrEmptyCart             = errors.New("cart is empty")
	ErrInsufficientStock     = errors.New("insufficient stock")
	ErrPersistenceFailed     = errors.New("persistence failed")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrNotFound              = errors.New("order not found")

	// ErrStatusConflict is returned by ledgers when the stored status no longer
	// matches the status a conditional update expected.
	ErrStatusConflict = errors.New("order status changed concurrently")
)

var kinds = []error{
	ErrInvalidInput,
	ErrUnauthenticated,
	ErrDependencyUnavailable,
	ErrEmptyCart,
	ErrInsufficientStock,
	ErrPersistenceFailed,
	ErrInvalidTransition,
	ErrNotFound,
}

// Error is the single typed failure surfaced by saga and status operations.
// It matches both its Kind and its cause under errors.Is.
type Error struct {
	Kind   error
	Detail string
	Err    error
}

func Fail(kind error, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: cause}
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Business reports whether the failure is an expected outcome the caller can
// correct, as opposed to an infrastructure fault.
func (e *Error) Business() bool {
	switch e.Kind {
	case ErrDependencyUnavailable, ErrPersistenceFailed:
		return false
	}
	return true
}

// Public is the caller-facing message. Infrastructure faults never leak detail.
func (e *Error) Public() string {
	if !e.Business() {
		return "the order service is temporarily unavailable, please retry"
	}
	if e.Detail != "" {
		return e.Detail
	}
	return e.Kind.Error()
}

// KindOf returns the taxonomy sentinel err belongs to, or nil.
func KindOf(err error) error {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Kind
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
