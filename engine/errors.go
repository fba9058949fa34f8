package engine

import (
	"errors"
	"fmt"
)

// ErrorKind classifies merge failures so callers can choose between
// skipping one input and aborting a whole batch.
type ErrorKind uint8

const (
	KindValidation ErrorKind = iota + 1
	KindMalformedInput
	KindRegression
	KindNotFound
	KindInconsistentState
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindMalformedInput:
		return "malformed_input"
	case KindRegression:
		return "regression"
	case KindNotFound:
		return "not_found"
	case KindInconsistentState:
		return "inconsistent_state"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. Every *Error matches the sentinel of its kind.
var (
	ErrValidation        = &Error{Kind: KindValidation, Message: "update shape does not match badge kind"}
	ErrMalformedInput    = &Error{Kind: KindMalformedInput, Message: "malformed input"}
	ErrRegression        = &Error{Kind: KindRegression, Message: "cumulative count regressed"}
	ErrNotFound          = &Error{Kind: KindNotFound, Message: "badge not found"}
	ErrInconsistentState = &Error{Kind: KindInconsistentState, Message: "inconsistent state"}
)

// Error is the only error type Merge returns.
type Error struct {
	Kind    ErrorKind
	BadgeID string
	Field   string
	Message string
}

func (e *Error) Error() string {
	msg := e.Kind.String() + ": " + e.Message
	if e.Field != "" {
		msg += " (field " + e.Field + ")"
	}
	if e.BadgeID != "" {
		msg = "badge " + e.BadgeID + ": " + msg
	}
	return msg
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrRegression) works
// regardless of badge or field.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind ErrorKind, badgeID, field, format string, args ...any) *Error {
	return &Error{Kind: kind, BadgeID: badgeID, Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validationf reports an update whose shape does not fit the badge kind.
func Validationf(badgeID, format string, args ...any) error {
	return newError(KindValidation, badgeID, "", format, args...)
}

// Malformedf reports a field failing a type or range check.
func Malformedf(badgeID, field, format string, args ...any) error {
	return newError(KindMalformedInput, badgeID, field, format, args...)
}

// NotFoundf reports a badge id missing from the catalog.
func NotFoundf(badgeID string) error {
	return newError(KindNotFound, badgeID, "", "badge %q is not in the catalog", badgeID)
}

func inconsistentf(badgeID, format string, args ...any) error {
	return newError(KindInconsistentState, badgeID, "", format, args...)
}

func regressionf(badgeID string, stored, incoming int64) error {
	return newError(KindRegression, badgeID, "cumulative_count",
		"incoming count %d is below stored count %d", incoming, stored)
}

// KindOf returns the engine error kind carried by err, or 0.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsSkippable reports whether err concerns a single input (log and continue)
// rather than the catalog or storage (abort the batch).
func IsSkippable(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindMalformedInput, KindRegression:
		return true
	default:
		return false
	}
}
