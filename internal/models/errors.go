package models

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("validation error")
	ErrUnsupportedType  = errors.New("unsupported media type")
	ErrBudgetExceeded   = errors.New("budget exceeded")
	ErrLatencyExceeded  = errors.New("latency exceeded")
	ErrExecutionFailure = errors.New("execution failure")
)

// Error kinds used on the wire
const (
	KindValidation       = "validation_error"
	KindUnsupportedType  = "unsupported_type"
	KindBudgetExceeded   = "budget_exceeded"
	KindLatencyExceeded  = "latency_exceeded"
	KindExecutionFailure = "execution_failure"
	KindInternal         = "internal_error"
)

// ErrorObject is the generic error shape carried in responses.
type ErrorObject struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ContractError wraps one of the sentinel errors with the offending field.
type ContractError struct {
	Kind  error
	Field string
	Msg   string
}

func (e *ContractError) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Field != "" && e.Msg != "":
		return fmt.Sprintf("%s: %s %s", e.Kind.Error(), e.Field, e.Msg)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
	default:
		return e.Kind.Error()
	}
}

func (e *ContractError) Unwrap() error { return e.Kind }

func validationError(field, msg string) error {
	return &ContractError{Kind: ErrValidation, Field: field, Msg: msg}
}

// Validationf reports a malformed or missing request field.
func Validationf(field, format string, args ...any) error {
	return &ContractError{Kind: ErrValidation, Field: field, Msg: fmt.Sprintf(format, args...)}
}

// UnsupportedTypef reports a media type no backend can produce.
func UnsupportedTypef(format string, args ...any) error {
	return &ContractError{Kind: ErrUnsupportedType, Field: "type", Msg: fmt.Sprintf(format, args...)}
}

// BudgetExceededf reports work that would cost more than allowed.
func BudgetExceededf(format string, args ...any) error {
	return &ContractError{Kind: ErrBudgetExceeded, Field: "constraints.budgetUsd", Msg: fmt.Sprintf(format, args...)}
}

// LatencyExceededf reports work that ran past its latency bound.
func LatencyExceededf(format string, args ...any) error {
	return &ContractError{Kind: ErrLatencyExceeded, Field: "constraints.maxLatencySec", Msg: fmt.Sprintf(format, args...)}
}

// ErrorKind maps an error to its wire kind.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrUnsupportedType):
		return KindUnsupportedType
	case errors.Is(err, ErrBudgetExceeded):
		return KindBudgetExceeded
	case errors.Is(err, ErrLatencyExceeded):
		return KindLatencyExceeded
	case errors.Is(err, ErrExecutionFailure):
		return KindExecutionFailure
	default:
		return KindInternal
	}
}

// ErrorObjectFrom converts err into the wire error shape. It returns nil for a nil error.
func ErrorObjectFrom(err error) *ErrorObject {
	if err == nil {
		return nil
	}
	return &ErrorObject{Kind: ErrorKind(err), Message: err.Error()}
}
