package shared

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation indicates structurally invalid input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates resource not found, including rows hidden by tenant scoping.
	ErrNotFound = errors.New("not found")
	// ErrBusinessRule indicates a violated domain invariant.
	ErrBusinessRule = errors.New("business rule violation")
	// ErrConflict indicates an optimistic concurrency conflict. Retryable.
	ErrConflict = errors.New("concurrent modification")
	// ErrTenantMismatch indicates a write against a record owned by another tenant.
	ErrTenantMismatch = errors.New("tenant mismatch")
	// ErrAccessDenied indicates an authenticated caller lacking a role or permission.
	ErrAccessDenied = errors.New("access denied")
	// ErrUnauthenticated indicates missing or invalid credentials.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", ErrUnauthenticated)
	// ErrNoTenantContext indicates tenant-scoped work attempted without a bound tenant.
	ErrNoTenantContext = errors.New("no tenant context")
	// ErrInvalidArgument indicates a programmer supplied an invalid argument.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrDataIntegrity indicates persisted state violating a tenant invariant.
	ErrDataIntegrity = errors.New("data integrity violation")
)

// FieldError describes a single invalid input field.
type FieldError struct {
	Field         string
	Code          string
	Message       string
	RejectedValue any
}

// Error is a classified failure. Kind is one of the sentinels above; Message is safe to show
// to callers for the kinds that surface it.
type Error struct {
	Kind    error
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewValidationError builds a ValidationFailed error from field errors.
func NewValidationError(fields ...FieldError) error {
	return &Error{Kind: ErrValidation, Message: "validation failed", Fields: fields}
}

// NotFound reports a missing resource. The message only names the requested identifier.
func NotFound(resource string, id any) error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf("%s with id '%v' not found", resource, id)}
}

// BusinessRule reports a domain invariant violation.
func BusinessRule(format string, args ...any) error {
	return &Error{Kind: ErrBusinessRule, Message: fmt.Sprintf(format, args...)}
}

// AccessDenied reports a missing role or permission.
func AccessDenied(format string, args ...any) error {
	return &Error{Kind: ErrAccessDenied, Message: fmt.Sprintf(format, args...)}
}

// TenantMismatch reports a cross-tenant write. The ids end up in server logs only.
func TenantMismatch(recordTenant, contextTenant any) error {
	return &Error{Kind: ErrTenantMismatch, Message: fmt.Sprintf("record tenant %v, context tenant %v", recordTenant, contextTenant)}
}

// Conflict reports a stale version on update.
func Conflict(resource string, id any) error {
	return &Error{Kind: ErrConflict, Message: fmt.Sprintf("%s %v was modified concurrently", resource, id)}
}

// DataIntegrity reports persisted state that breaks a tenant invariant.
func DataIntegrity(format string, args ...any) error {
	return &Error{Kind: ErrDataIntegrity, Message: fmt.Sprintf(format, args...)}
}

// InvalidArgument reports a programmer error in an argument.
func InvalidArgument(format string, args ...any) error {
	return &Error{Kind: ErrInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// Fields returns the field errors carried by err, if any.
func Fields(err error) []FieldError {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}

// PublicMessage returns the caller-safe message of err, or "" when none was set.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ""
}

// Unauthenticated reports a missing or unusable credential.
func Unauthenticated(format string, args ...any) error {
	return &Error{Kind: ErrUnauthenticated, Message: fmt.Sprintf(format, args...)}
}
