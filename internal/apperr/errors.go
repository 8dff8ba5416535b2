// Package apperr holds the typed failures returned by the assessment core.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindConflict
	KindState
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindState:
		return "state"
	default:
		return "unknown"
	}
}

// Stable codes surfaced to callers.
const (
	CodeInvalidInput         = "InvalidInput"
	CodeInvalidAnswer        = "InvalidAnswer"
	CodeNotFound             = "NotFound"
	CodeAlreadyExists        = "AlreadyExists"
	CodeQuestionNotInSession = "QuestionNotInSession"
	CodeActiveSessionExists  = "ActiveSessionExists"
	CodeAttemptLimitReached  = "AttemptLimitReached"
	CodeTestUnavailable      = "TestUnavailable"
	CodeTestLocked           = "TestLocked"
	CodeStaleWrite           = "StaleWrite"
	CodeSessionNotActive     = "SessionNotActive"
	CodeSessionExpired       = "SessionExpired"
	CodeInvalidTransition    = "InvalidTransition"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details []string
	// SessionID is set for ActiveSessionExists so the caller can resume.
	SessionID string
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Code)
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Details) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(e.Details, "; "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string, details ...string) *Error {
	return &Error{Kind: KindValidation, Code: CodeInvalidInput, Message: msg, Details: details}
}

func InvalidAnswer(msg string, err error) *Error {
	return &Error{Kind: KindValidation, Code: CodeInvalidAnswer, Message: msg, Err: err}
}

func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: fmt.Sprintf("%s %q not found", entity, id)}
}

func QuestionNotInSession(sessionID, questionID string) *Error {
	return &Error{
		Kind:      KindNotFound,
		Code:      CodeQuestionNotInSession,
		Message:   fmt.Sprintf("question %q is not part of session %q", questionID, sessionID),
		SessionID: sessionID,
	}
}

func Conflict(code, msg string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: msg}
}

func ActiveSessionExists(sessionID string) *Error {
	return &Error{
		Kind:      KindConflict,
		Code:      CodeActiveSessionExists,
		Message:   "an in-progress session already exists",
		SessionID: sessionID,
	}
}

func State(code, msg string) *Error {
	return &Error{Kind: KindState, Code: code, Message: msg}
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func IsKind(err error, k Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == k
}

func IsCode(err error, code string) bool {
	e, ok := As(err)
	return ok && e.Code == code
}
