// Package apperr defines the error taxonomy surfaced across the API.
//
// Handlers type-switch on these instead of string-matching error messages,
// generalizing the teacher's `if err.Error() == "..."` checks into a form
// that scales to the larger error taxonomy this system needs (spec section 7).
package apperr

import "fmt"

// Kind identifies which HTTP status family an error maps to.
type Kind string

const (
	KindValidation Kind = "validation" // 400
	KindAuth       Kind = "auth"       // 401
	KindPermission Kind = "permission" // 403
	KindNotFound   Kind = "not_found"  // 404
	KindConflict   Kind = "conflict"   // 409
	KindCapacity   Kind = "capacity"   // 400
	KindState      Kind = "state"      // 400
	KindPayment    Kind = "payment"    // 402/500
	KindRateLimit  Kind = "rate_limit" // 429
	KindTransient  Kind = "transient"  // 5xx
)

// Error is a typed application error carrying an HTTP-mappable Kind, a
// user-facing Message, and optional per-field validation Errors.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.err }

func new(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, err: err}
}

func Validation(msg string) *Error              { return new(KindValidation, msg) }
func ValidationWrap(msg string, err error) *Error { return wrap(KindValidation, msg, err) }

// ValidationFields attaches per-field messages, matching spec section 7's
// "includes per-field messages" requirement for ValidationError.
func ValidationFields(msg string, fields map[string]string) *Error {
	e := new(KindValidation, msg)
	e.Fields = fields
	return e
}

func Auth(msg string) *Error       { return new(KindAuth, msg) }
func Permission(msg string) *Error { return new(KindPermission, msg) }
func NotFound(msg string) *Error   { return new(KindNotFound, msg) }
func Conflict(msg string) *Error   { return new(KindConflict, msg) }
func Capacity(msg string) *Error   { return new(KindCapacity, msg) }
func State(msg string) *Error      { return new(KindState, msg) }
func Payment(msg string) *Error              { return new(KindPayment, msg) }
func PaymentWrap(msg string, err error) *Error { return wrap(KindPayment, msg, err) }
func RateLimit(msg string) *Error  { return new(KindRateLimit, msg) }
func Transient(msg string, err error) *Error { return wrap(KindTransient, msg, err) }

// As extracts an *Error from err, if any, the way handlers dispatch on kind.
func As(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	ae, ok := err.(*Error)
	return ae, ok
}

// Insufficient-capacity / insufficient-balance sub-kinds, kept as sentinel
// messages within KindCapacity per spec's named sub-errors
// (InsufficientSeats, InsufficientLuggage, InsufficientBalance).
var (
	ErrInsufficientSeats   = Capacity("insufficient seats remaining")
	ErrInsufficientLuggage = Capacity("insufficient luggage capacity remaining")
	ErrInsufficientBalance = Capacity("insufficient wallet balance")
)
