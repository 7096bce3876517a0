package serrors

import (
	"errors"
	"fmt"
)

// Error codes shared across the engine. Controllers map these to HTTP
// statuses; services compare with the helpers below instead of matching
// on message text.
const (
	CodeNotFound           = "NOT_FOUND"
	CodeBadRequest         = "BAD_REQUEST"
	CodeDependencyConflict = "DEPENDENCY_CONFLICT"
	CodeIndexDesync        = "INDEX_DESYNC"
	CodeNoActor            = "NO_ACTOR"
)

// BaseError is a structured error with a stable machine-readable code and
// optional metadata for the response envelope.
type BaseError struct {
	Code    string
	Message string
	Meta    map[string]string
}

func NewError(code, message string) *BaseError {
	return &BaseError{Code: code, Message: message}
}

func (e *BaseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BaseError) WithMeta(meta map[string]string) *BaseError {
	out := &BaseError{Code: e.Code, Message: e.Message, Meta: make(map[string]string, len(e.Meta)+len(meta))}
	for k, v := range e.Meta {
		out.Meta[k] = v
	}
	for k, v := range meta {
		out.Meta[k] = v
	}
	return out
}

// Is matches on code so sentinel comparisons survive WithMeta copies.
func (e *BaseError) Is(target error) bool {
	var be *BaseError
	if !errors.As(target, &be) {
		return false
	}
	return e.Code == be.Code
}

func NewNotFound(kind string, id int64) *BaseError {
	return NewError(CodeNotFound, fmt.Sprintf("%s %d not found", kind, id))
}

func NewBadRequest(message string) *BaseError {
	return NewError(CodeBadRequest, message)
}

// NewDependencyConflict reports a delete blocked by referencing entities.
// Meta carries the blocking edges so callers can offer a merge flow.
func NewDependencyConflict(kind string, id int64, meta map[string]string) *BaseError {
	return NewError(
		CodeDependencyConflict,
		fmt.Sprintf("%s %d is still referenced by other entities", kind, id),
	).WithMeta(meta)
}

func NewIndexDesync(kind string, message string) *BaseError {
	return NewError(CodeIndexDesync, message).WithMeta(map[string]string{"kind": kind})
}

func code(err error) string {
	var be *BaseError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

func IsNotFound(err error) bool           { return code(err) == CodeNotFound }
func IsBadRequest(err error) bool         { return code(err) == CodeBadRequest }
func IsDependencyConflict(err error) bool { return code(err) == CodeDependencyConflict }
