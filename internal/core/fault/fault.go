// Package fault defines the error taxonomy shared by the issuance pipeline.
// Handlers map these types to HTTP status codes; services wrap lower-level
// errors into exactly one of them so callers always know which step failed.
package fault

import (
	"errors"
	"fmt"
)

// ValidationError signals malformed or missing input supplied by the caller.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// NewValidation builds a ValidationError for the given field.
func NewValidation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError signals that a referenced entity does not exist.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.Key)
}

// NewNotFound builds a NotFoundError for the given entity and lookup key.
func NewNotFound(entity, key string) error {
	return &NotFoundError{Entity: entity, Key: key}
}

// ConflictError signals an illegal state transition, a duplicate folio or an
// over-payment attempt.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %s", e.Reason)
}

// NewConflict builds a ConflictError.
func NewConflict(reason string) error {
	return &ConflictError{Reason: reason}
}

// ExternalServiceError signals that the stamping provider was unreachable or
// rejected the document. Transient marks failures that are safe to retry with
// the identical payload (assembly is deterministic); provider business
// rejections are terminal and carry the provider message verbatim.
type ExternalServiceError struct {
	Provider  string
	Message   string
	Transient bool
	Err       error
}

func (e *ExternalServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// NewExternal builds an ExternalServiceError.
func NewExternal(provider, message string, transient bool, err error) error {
	return &ExternalServiceError{Provider: provider, Message: message, Transient: transient, Err: err}
}

// DatabaseError wraps a storage failure.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database: %s: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

// NewDatabase builds a DatabaseError for the given operation.
func NewDatabase(op string, err error) error {
	return &DatabaseError{Op: op, Err: err}
}

// IsTransient reports whether err is an ExternalServiceError eligible for a
// caller-level retry.
func IsTransient(err error) bool {
	var ext *ExternalServiceError
	return errors.As(err, &ext) && ext.Transient
}
