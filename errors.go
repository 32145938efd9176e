package authcore

import (
	"errors"
	"fmt"
	"net/http"
)

// FieldError describes one failing input field of an Unprocessable error.
type FieldError struct {
	Code    string `json:"code"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Error is the typed error every Engine operation returns. Status is the HTTP
// status the error maps to and Reason a stable machine-readable code.
//
// errors.Is matches two *Error values by Reason, so the package-level
// sentinels can be used as targets regardless of the message.
type Error struct {
	Status  int
	Reason  string
	Message string
	Fields  []FieldError
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target is an *Error with the same Reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Reason == e.Reason
}

// WithMessage returns a copy of e carrying msg.
func (e *Error) WithMessage(msg string) *Error {
	out := *e
	out.Message = msg
	return &out
}

// Reasons.
const (
	ReasonBadRequest           = "BadRequest"
	ReasonInvalidCredentials   = "InvalidCredentials"
	ReasonIncorrectOldPassword = "IncorrectOldPassword"
	ReasonMissingOldPassword   = "MissingOldPassword"
	ReasonInvalidToken         = "InvalidToken"
	ReasonUnauthorized         = "Unauthorized"
	ReasonForbidden            = "Forbidden"
	ReasonNotFound             = "NotFound"
	ReasonUserNotFound         = "UserNotFound"
	ReasonRoleNotFound         = "RoleNotFound"
	ReasonConflict             = "Conflict"
	ReasonEmailExists          = "EmailExists"
	ReasonUnprocessable        = "UnprocessableEntity"
	ReasonTooManyRequests      = "TooManyRequests"
	ReasonExternalSystem       = "ExternalSystemError"
	ReasonInternal             = "InternalServerError"
)

var (
	ErrBadRequest           = &Error{Status: http.StatusBadRequest, Reason: ReasonBadRequest, Message: "bad request"}
	ErrInvalidCredentials   = &Error{Status: http.StatusBadRequest, Reason: ReasonInvalidCredentials, Message: "invalid email or password"}
	ErrIncorrectOldPassword = &Error{Status: http.StatusBadRequest, Reason: ReasonIncorrectOldPassword, Message: "incorrect old password"}
	ErrMissingOldPassword   = &Error{Status: http.StatusBadRequest, Reason: ReasonMissingOldPassword, Message: "old password is required"}
	ErrInvalidToken         = &Error{Status: http.StatusBadRequest, Reason: ReasonInvalidToken, Message: "invalid token"}
	ErrUnauthorized         = &Error{Status: http.StatusUnauthorized, Reason: ReasonUnauthorized, Message: "unauthorized"}
	ErrForbidden            = &Error{Status: http.StatusForbidden, Reason: ReasonForbidden, Message: "forbidden"}
	ErrNotFound             = &Error{Status: http.StatusNotFound, Reason: ReasonNotFound, Message: "not found"}
	ErrUserNotFound         = &Error{Status: http.StatusNotFound, Reason: ReasonUserNotFound, Message: "user not found"}
	ErrRoleNotFound         = &Error{Status: http.StatusNotFound, Reason: ReasonRoleNotFound, Message: "role not found"}
	ErrConflict             = &Error{Status: http.StatusConflict, Reason: ReasonConflict, Message: "conflict"}
	ErrEmailExists          = &Error{Status: http.StatusConflict, Reason: ReasonEmailExists, Message: "email already exists"}
	ErrUnprocessable        = &Error{Status: http.StatusUnprocessableEntity, Reason: ReasonUnprocessable, Message: "validation failed"}
	ErrTooManyRequests      = &Error{Status: http.StatusTooManyRequests, Reason: ReasonTooManyRequests, Message: "too many requests"}
	ErrExternalSystem       = &Error{Status: http.StatusBadGateway, Reason: ReasonExternalSystem, Message: "external system error"}
)

// Repository sentinels. Implementations of UserRepository and RoleRepository
// return (possibly wrapped) versions of these.
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicate      = errors.New("duplicate record")
)

// Unprocessable builds a validation error carrying field-level details.
func Unprocessable(msg string, fields ...FieldError) *Error {
	if msg == "" {
		msg = ErrUnprocessable.Message
	}
	return &Error{
		Status:  http.StatusUnprocessableEntity,
		Reason:  ReasonUnprocessable,
		Message: msg,
		Fields:  fields,
	}
}

// ExternalSystem wraps a downstream failure (store, cache, mail) as a 502.
func ExternalSystem(op string, cause error) *Error {
	return &Error{
		Status:  http.StatusBadGateway,
		Reason:  ReasonExternalSystem,
		Message: fmt.Sprintf("%s failed", op),
		cause:   cause,
	}
}

// AsError converts any error into an *Error. Values that are not already typed
// become a 500 that does not echo the underlying message.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	return &Error{
		Status:  http.StatusInternalServerError,
		Reason:  ReasonInternal,
		Message: "internal server error",
		cause:   err,
	}
}

// StatusCode returns the HTTP status for err.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return AsError(err).Status
}
