// Package apperr defines the error categories surfaced by the engine's
// exposed operations. Lower layers keep returning sentinel errors; services
// wrap them into an *Error so the HTTP layer can map a Kind to a status.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the coarse category of an application error
type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindStateConflict Kind = "state_conflict"
	KindProvider      Kind = "provider"
	KindPersistence   Kind = "persistence"
)

// Machine-readable codes
const (
	CodeInvalidAttitude      = "invalid_attitude"
	CodeMissingField         = "missing_field"
	CodeNoRoster             = "no_roster"
	CodeChatroomNotFound     = "chatroom_not_found"
	CodeContentNotFound      = "content_not_found"
	CodeRosterMemberNotFound = "roster_member_not_found"
	CodeChatroomNotOpenYet   = "chatroom_not_open_yet"
	CodeChatroomClosed       = "chatroom_closed"
	CodeAlreadyParticipated  = "already_participated"
	CodeInvalidTransition    = "invalid_transition"
	CodeProviderFailed       = "provider_failed"
	CodePersistenceFailed    = "persistence_failed"
)

// Error is a categorized application error
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind and, when set, code
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

func Validation(code, msg string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: msg}
}

func WrapValidation(code string, err error) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: err.Error(), Err: err}
}

func NotFound(code, msg string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: msg}
}

func Conflict(code, msg string) *Error {
	return &Error{Kind: KindStateConflict, Code: code, Message: msg}
}

func Provider(err error) *Error {
	return &Error{Kind: KindProvider, Code: CodeProviderFailed, Message: "text provider call failed", Err: err}
}

func Persistence(err error) *Error {
	return &Error{Kind: KindPersistence, Code: CodePersistenceFailed, Message: "storage operation failed", Err: err}
}

// KindOf returns the Kind of the first *Error in the chain, or "" if none
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// CodeOf returns the Code of the first *Error in the chain, or "" if none
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
