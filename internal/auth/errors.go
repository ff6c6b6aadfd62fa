package auth

import "errors"

const (
	CodeInvalidEmail        = "auth/invalid-email"
	CodeUserNotFound        = "auth/user-not-found"
	CodeWrongPassword       = "auth/wrong-password"
	CodeInvalidCredential   = "auth/invalid-credential"
	CodeEmailAlreadyInUse   = "auth/email-already-in-use"
	CodeWeakPassword        = "auth/weak-password"
	CodeTooManyRequests     = "auth/too-many-requests"
	CodeUserDisabled        = "auth/user-disabled"
	CodeRequiresRecentLogin = "auth/requires-recent-login"
	CodeInternal            = "auth/internal-error"
)

// Error is the provider's failure type. Code is stable; Err carries the
// underlying cause when there is one.
type Error struct {
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Err.Error()
	}
	return e.Code
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code string, err error) *Error {
	return &Error{Code: code, Err: err}
}

// ErrorCode returns the provider code carried by err, or "" when err did
// not come from the provider.
func ErrorCode(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
