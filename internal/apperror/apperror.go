// Package apperror is the error taxonomy shared by handlers and middleware.
// Handlers return *Error values (or plain errors); a single echo error
// handler turns them into the JSON envelope and status code.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the HTTP layer.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
)

// Stable codes carried in the "error" field of authentication failures.
const (
	CodeMissingCredentials  = "MissingCredentials"
	CodeInvalidToken        = "InvalidToken"
	CodeExpiredToken        = "ExpiredToken"
	CodeUnauthorizedAccount = "UnauthorizedAccount"
	CodeInvalidCredentials  = "InvalidCredentials"
	CodeForbidden           = "Forbidden"
)

var kindNames = map[Kind]string{
	KindInternal:       "InternalError",
	KindValidation:     "ValidationError",
	KindAuthentication: "AuthenticationError",
	KindAuthorization:  "AuthorizationError",
	KindNotFound:       "NotFoundError",
	KindConflict:       "ConflictError",
}

func (k Kind) String() string { return kindNames[k] }

// Status maps a kind to its HTTP status.  Conflicts are reported as 400.
func (k Kind) Status() int {
	switch k {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// FieldError describes one failing input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Code    string // optional; defaults to the kind name
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Name is the value rendered in the envelope's "error" field.
func (e *Error) Name() string {
	if e.Code != "" {
		return e.Code
	}
	return e.Kind.String()
}

func Validation(msg string, fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

func Authentication(code, msg string) *Error {
	return &Error{Kind: KindAuthentication, Code: code, Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindAuthorization, Code: CodeForbidden, Message: msg}
}

func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

func Conflict(msg string) *Error { return &Error{Kind: KindConflict, Message: msg} }

// Internal wraps err.  msg is what clients see outside development mode.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf reports the kind of err; unclassified errors are internal.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}
