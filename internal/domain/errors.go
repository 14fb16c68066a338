package domain

import (
	"errors"
	"fmt"
)

// Machine-readable codes surfaced in the "error" field of every failure envelope.
const (
	CodeQRCodeRequired    = "QR_CODE_REQUIRED"
	CodeStaffInfoRequired = "STAFF_INFO_REQUIRED"
	CodeValidation        = "VALIDATION_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeWrongDate         = "WRONG_DATE"
	CodeAlreadyMarked     = "ALREADY_MARKED"
	CodeConflict          = "CONFLICT"
	CodeNotAuthorized     = "NOT_AUTHORIZED"
	CodeUnauthorized      = "AUTHORIZATION_ERROR"
	CodeDatabase          = "DATABASE_ERROR"
	CodeUpstream          = "UPSTREAM_ERROR"
	CodeInternal          = "INTERNAL_ERROR"
)

type ValidationError struct {
	Code  string
	Field string
	Msg   string
	Err   error
}

func (e ValidationError) Error() string {
	if e.Msg != "" && e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Field != "" {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return "validation error"
}

func (e ValidationError) Unwrap() error { return e.Err }

// ErrorCode defaults to VALIDATION_ERROR.
func (e ValidationError) ErrorCode() string { return orDefault(e.Code, CodeValidation) }

// WrongDateError is returned when a ticket is presented on a day other than its trip date.
type WrongDateError struct {
	TicketDate  string
	CurrentDate string
}

func (e WrongDateError) Error() string {
	return fmt.Sprintf("ticket is for %s, today is %s", e.TicketDate, e.CurrentDate)
}

func (e WrongDateError) ErrorCode() string { return CodeWrongDate }

type NotFoundError struct {
	Resource string
	Err      error
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e NotFoundError) Unwrap() error { return e.Err }

func (e NotFoundError) ErrorCode() string { return CodeNotFound }

type ConflictError struct {
	Code     string
	Resource string
	Msg      string
	// Existing carries the record that caused the conflict, when the caller can show it.
	Existing any
	Err      error
}

func (e ConflictError) Error() string {
	switch {
	case e.Msg != "" && e.Resource != "":
		return fmt.Sprintf("%s conflict: %s", e.Resource, e.Msg)
	case e.Msg != "":
		return e.Msg
	case e.Resource != "":
		return fmt.Sprintf("%s conflict", e.Resource)
	default:
		return "conflict"
	}
}

func (e ConflictError) Unwrap() error { return e.Err }

func (e ConflictError) ErrorCode() string { return orDefault(e.Code, CodeConflict) }

// AuthorizationError covers both unauthenticated callers (bad scheduler key, missing token)
// and authenticated staff acting outside their routes.
type AuthorizationError struct {
	Code            string
	Msg             string
	Unauthenticated bool
}

func (e AuthorizationError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "not authorized"
}

func (e AuthorizationError) ErrorCode() string {
	if e.Code != "" {
		return e.Code
	}
	if e.Unauthenticated {
		return CodeUnauthorized
	}
	return CodeNotAuthorized
}

// PersistenceError wraps a storage failure; Err keeps the driver detail for logs only.
type PersistenceError struct {
	Op  string
	Err error
}

func (e PersistenceError) Error() string {
	if e.Op == "" {
		return "database error"
	}
	return fmt.Sprintf("database error during %s", e.Op)
}

func (e PersistenceError) Unwrap() error { return e.Err }

func (e PersistenceError) ErrorCode() string { return CodeDatabase }

// UpstreamError wraps a failed outbound call (notifier, identity provider).
type UpstreamError struct {
	Service string
	Err     error
}

func (e UpstreamError) Error() string {
	if e.Service == "" {
		return "upstream call failed"
	}
	return fmt.Sprintf("%s call failed", e.Service)
}

func (e UpstreamError) Unwrap() error { return e.Err }

func (e UpstreamError) ErrorCode() string { return CodeUpstream }

type InternalError struct {
	Msg string
	Err error
}

func (e InternalError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "internal error"
}

func (e InternalError) Unwrap() error { return e.Err }

func (e InternalError) ErrorCode() string { return CodeInternal }

// Coder is implemented by every domain error.
type Coder interface {
	ErrorCode() string
}

// CodeOf returns the machine code of err, INTERNAL_ERROR for foreign errors.
func CodeOf(err error) string {
	var c Coder
	if errors.As(err, &c) {
		return c.ErrorCode()
	}
	return CodeInternal
}

func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return PersistenceError{Op: op, Err: err}
}

func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

func IsWrongDate(err error) bool {
	var target WrongDateError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target ConflictError
	return errors.As(err, &target)
}

func IsAuthorization(err error) bool {
	var target AuthorizationError
	return errors.As(err, &target)
}

func IsPersistence(err error) bool {
	var target PersistenceError
	return errors.As(err, &target)
}

func IsUpstream(err error) bool {
	var target UpstreamError
	return errors.As(err, &target)
}

func IsInternal(err error) bool {
	var target InternalError
	return errors.As(err, &target)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
