package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/samber/oops"
)

// Error codes returned by the session registry, the reset flow and
// registration. Read them back with ErrorCode.
const (
	CodeMissingFields      = "MISSING_FIELDS"
	CodeDuplicateEmail     = "DUPLICATE_EMAIL"
	CodePasswordMismatch   = "PASSWORD_MISMATCH"
	CodeWeakPassword       = "WEAK_PASSWORD"
	CodeInvalidFields      = "INVALID_FIELDS"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeNotFound           = "NOT_FOUND"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeTokenMalformed     = "TOKEN_MALFORMED"
	CodeTokenBadSignature  = "TOKEN_BAD_SIGNATURE"
	CodeInternal           = "INTERNAL"
)

// ErrUserNotFound is returned by Users implementations for unknown users
var ErrUserNotFound = errors.New("user not found")

// ErrEmailTaken is returned by Users.Create on a unique email violation
var ErrEmailTaken = errors.New("email already registered")

// ErrResetTokenMismatch is returned by Users.ResetPassword when the
// stored reset token changed underneath the caller
var ErrResetTokenMismatch = errors.New("reset token does not match")

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = errors.New("password can not be an empty string")

// ErrMismatchedHashAndPassword password and hash do not match
var ErrMismatchedHashAndPassword = errors.New("password does not match hash")

var publicMessages = map[string]string{
	CodeMissingFields:      "fill all the details",
	CodeDuplicateEmail:     "this email is already registered",
	CodePasswordMismatch:   "password and confirm password do not match",
	CodeWeakPassword:       "password must be at least 6 characters",
	CodeInvalidFields:      "some details are not valid",
	CodeInvalidCredentials: "invalid details",
	CodeUnauthorized:       "unauthorized, no valid session",
	CodeNotFound:           "user not exist or link expired",
	CodeTokenExpired:       "token expired",
	CodeTokenMalformed:     "invalid token",
	CodeTokenBadSignature:  "invalid token",
}

// ErrorCode returns the code carried by err, or an empty string
// for errors that were not built by this package.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	if code := oopsErr.Code(); code != nil {
		return fmt.Sprint(code)
	}
	return ""
}

// IsCode reports whether err carries the given code
func IsCode(err error, code string) bool {
	return err != nil && ErrorCode(err) == code
}

// HTTPStatus maps an error onto the status code the HTTP layer answers with.
func HTTPStatus(err error) int {
	switch ErrorCode(err) {
	case CodeMissingFields, CodeDuplicateEmail, CodePasswordMismatch, CodeWeakPassword, CodeInvalidFields, CodeInvalidCredentials:
		return http.StatusUnprocessableEntity
	case CodeUnauthorized, CodeNotFound, CodeTokenExpired, CodeTokenMalformed, CodeTokenBadSignature:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the client safe text for err
func PublicMessage(err error) string {
	if msg, ok := publicMessages[ErrorCode(err)]; ok {
		return msg
	}
	return "internal server error"
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	return IsCode(err, CodeTokenExpired)
}

// IsMalformedError will check for malformed tokens
func IsMalformedError(err error) bool {
	return IsCode(err, CodeTokenMalformed)
}

// codedError builds an error carrying code. Coded causes are folded into
// the context instead of wrapped so the outer code is the one reported.
func codedError(code string, cause error, msg string, kv ...any) error {
	b := oops.Code(code).With(kv...)
	if cause == nil {
		return b.Errorf("%s", msg)
	}
	if _, ok := oops.AsOops(cause); ok {
		return b.With("cause", cause.Error(), "cause_code", ErrorCode(cause)).Errorf("%s", msg)
	}
	return b.Wrapf(cause, "%s", msg)
}

func missingFieldsError(fields ...string) error {
	return codedError(CodeMissingFields, nil, "missing required fields", "fields", fields)
}

func unauthorizedError(cause error, kv ...any) error {
	return codedError(CodeUnauthorized, cause, "unauthorized", kv...)
}

func notFoundError(cause error, kv ...any) error {
	return codedError(CodeNotFound, cause, "user or reset token not found", kv...)
}

func internalError(cause error, msg string, kv ...any) error {
	return codedError(CodeInternal, cause, msg, kv...)
}

// LogError logs err through logger, flattening the code and context
// attached to coded errors.
func LogError(logger Logger, msg string, err error) {
	logger = normalizeLogger(logger)
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		logger.Error("%s: %v", msg, err)
		return
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		logger.Error("%s: %s code=%s context=%v", msg, oopsErr.Error(), ErrorCode(err), ctx)
		return
	}
	logger.Error("%s: %s code=%s", msg, oopsErr.Error(), ErrorCode(err))
}
