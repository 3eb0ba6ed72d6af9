package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ValidationError carries field-attributed messages. Surfaced as 400.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a message for field unless one is already present.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

// OrNil returns nil when no field failed, so callers can `return v.OrNil()`.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func Invalid(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// PermissionError: the caller may not act on the resource. Surfaced as 403.
type PermissionError struct {
	Reason string
}

func (e *PermissionError) Error() string { return e.Reason }

func Forbidden(reason string) *PermissionError {
	return &PermissionError{Reason: reason}
}

// NotFoundError: a referenced row does not exist. Field is the request field
// that carried the reference, if any. Surfaced as 404.
type NotFoundError struct {
	Resource string
	Field    string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

func NotFound(resource, field string) *NotFoundError {
	return &NotFoundError{Resource: resource, Field: field}
}

// ErrConflict: the request raced another writer (lock timeout, unique key)
// and may be resubmitted.
var ErrConflict = errors.New("conflict")

// ConflictError is an ErrConflict with a caller-facing message.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

func Conflict(msg string) *ConflictError {
	return &ConflictError{Msg: msg}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsForbidden(err error) bool {
	var p *PermissionError
	return errors.As(err, &p)
}

func IsNotFound(err error) bool {
	var n *NotFoundError
	return errors.As(err, &n)
}
