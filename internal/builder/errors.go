package builder

import (
	"errors"
	"fmt"

	"github.com/langdag/dagbuilder/internal/workflow"
)

// Error codes surfaced to callers.
const (
	CodeNotStarted      = "BUILDER_NOT_STARTED"
	CodeInvalidInput    = "INVALID_INPUT"
	CodeNodeNotFound    = "NODE_NOT_FOUND"
	CodeEdgeNotFound    = "EDGE_NOT_FOUND"
	CodeDuplicateNodeID = workflow.CodeDuplicateNodeID
	CodeDuplicateEdge   = "DUPLICATE_EDGE"
	CodeSelfReference   = workflow.CodeSelfReference
	CodeNotValidated    = "SESSION_NOT_VALIDATED"
	CodeSessionClosed   = "SESSION_CLOSED"
	CodeSessionNotFound = "SESSION_NOT_FOUND"
	CodeStaleSession    = "STALE_SESSION"
	CodeCommitFailed    = "COMMIT_FAILED"
	CodeInternal        = "INTERNAL_ERROR"
)

// Error is a typed, machine-readable builder failure.
type Error struct {
	Code    string
	Message string
	Hint    string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code carried by err, or CodeInternal.
func CodeOf(err error) string {
	var be *Error
	if errors.As(err, &be) {
		return be.Code
	}
	return CodeInternal
}

// IsCode reports whether err is a builder error with the given code.
func IsCode(err error, code string) bool {
	var be *Error
	return errors.As(err, &be) && be.Code == code
}

func newError(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) withHint(hint string) *Error {
	e.Hint = hint
	return e
}

func (e *Error) withDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

func errNotStarted() *Error {
	return newError(CodeNotStarted, "no builder session is active").
		withHint("start one with `dagbuilder start <name>`")
}

func errSessionNotFound(id string) *Error {
	return newError(CodeSessionNotFound, "session %s not found", id).
		withDetails(map[string]any{"sessionId": id})
}

func errNodeNotFound(id string) *Error {
	return newError(CodeNodeNotFound, "node %s not found", id).
		withDetails(map[string]any{"nodeId": id})
}

func errSelfReference(id string) *Error {
	return newError(CodeSelfReference, "node %s cannot depend on itself", id).
		withDetails(map[string]any{"nodeId": id})
}

func errInvalidInput(err error) *Error {
	be := &Error{Code: CodeInvalidInput, Message: err.Error(), Err: err}
	var ie *workflow.InputError
	if errors.As(err, &ie) {
		be.Details = map[string]any{"problems": ie.Problems}
	}
	return be
}
