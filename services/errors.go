package services

import (
	"errors"
	"fmt"
)

// Kind classifies a service failure so transports can map it without
// inspecting individual codes.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindConflict
	KindNotFound
	KindState
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindState:
		return "state"
	case KindStore:
		return "store"
	}
	return "unknown"
}

// Error is the error type returned by every service operation. Two errors
// match under errors.Is when their codes are equal.
type Error struct {
	Kind    Kind
	Code    string
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// withMessage copies e with a more specific message.
func (e *Error) withMessage(format string, args ...interface{}) *Error {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

func (e *Error) withField(field string) *Error {
	cp := *e
	cp.Field = field
	return &cp
}

var (
	ErrInvalidInput     = &Error{Kind: KindValidation, Code: "invalid_input", Message: "invalid input"}
	ErrInvalidTimeRange = &Error{Kind: KindValidation, Code: "invalid_time_range", Message: "invalid date or time range"}
	ErrPromoInvalid     = &Error{Kind: KindValidation, Code: "promo_invalid", Message: "promo code is not valid"}

	ErrTableNoLongerAvailable = &Error{Kind: KindConflict, Code: "table_no_longer_available", Message: "table is no longer available for the requested time"}
	ErrDuplicate              = &Error{Kind: KindConflict, Code: "duplicate", Message: "record already exists"}

	ErrTableNotFound   = &Error{Kind: KindNotFound, Code: "table_not_found", Message: "table not found"}
	ErrBookingNotFound = &Error{Kind: KindNotFound, Code: "booking_not_found", Message: "booking not found"}
	ErrPromoNotFound   = &Error{Kind: KindNotFound, Code: "promo_not_found", Message: "promo code not found"}
	ErrBranchNotFound  = &Error{Kind: KindNotFound, Code: "branch_not_found", Message: "branch not found"}
	ErrUserNotFound    = &Error{Kind: KindNotFound, Code: "user_not_found", Message: "user not found"}

	ErrNotificationNotFound = &Error{Kind: KindNotFound, Code: "notification_not_found", Message: "notification not found"}

	ErrInvalidTransition        = &Error{Kind: KindState, Code: "invalid_transition", Message: "booking status does not allow this operation"}
	ErrTooEarly                 = &Error{Kind: KindState, Code: "too_early", Message: "too early to check in"}
	ErrTooLate                  = &Error{Kind: KindState, Code: "too_late", Message: "check-in window has passed"}
	ErrCancellationWindowClosed = &Error{Kind: KindState, Code: "cancellation_window_closed", Message: "bookings can only be cancelled at least 24 hours in advance"}
	ErrPromoInUse               = &Error{Kind: KindState, Code: "promo_in_use", Message: "promo code has already been used"}

	ErrStoreUnavailable = &Error{Kind: KindStore, Code: "store_unavailable", Message: "service temporarily unavailable, please retry"}
	ErrPaymentFailed    = &Error{Kind: KindStore, Code: "payment_failed", Message: "could not start the deposit payment, please retry"}
)

func invalidInput(field, format string, args ...interface{}) *Error {
	return ErrInvalidInput.withMessage(format, args...).withField(field)
}

func storeError(op string, err error) *Error {
	cp := *ErrStoreUnavailable
	cp.Err = fmt.Errorf("%s: %w", op, err)
	return &cp
}

// KindOf returns the kind of a service error, or zero for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// AsError extracts the service error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
