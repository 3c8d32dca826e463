package authgate

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeTokenMalformed      = "TOKEN_MALFORMED"
	textCodeTokenExpired        = "TOKEN_EXPIRED"
	textCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	textCodeMissingBearer       = "MISSING_BEARER_TOKEN"
	textCodeIdentityUnresolved  = "IDENTITY_UNRESOLVED"
	textCodeAdminRequired       = "ADMINISTRATOR_REQUIRED"
	textCodeUnknownRole         = "UNKNOWN_ROLE"
	textCodeUserNotFound        = "USER_NOT_FOUND"
	textCodeRoleAlreadyAssigned = "ROLE_ALREADY_ASSIGNED"
	textCodeServiceKeyMissing   = "SERVICE_KEY_MISSING"
	textCodeUpstreamFailure     = "UPSTREAM_FAILURE"
)

// ErrTokenMalformed is returned when a session token cannot be decoded.
var ErrTokenMalformed = goerrors.New("session token is malformed", goerrors.CategoryAuth).
	WithTextCode(textCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned when a session token is past its grace window.
var ErrTokenExpired = goerrors.New("session token is expired", goerrors.CategoryAuth).
	WithTextCode(textCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidCredentials is the single caller-facing login failure; the
// underlying cause is logged, never surfaced.
var ErrInvalidCredentials = goerrors.New("incorrect credentials", goerrors.CategoryAuth).
	WithTextCode(textCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrMissingBearerToken is returned when a privileged operation arrives
// without an Authorization header.
var ErrMissingBearerToken = goerrors.New("missing bearer token", goerrors.CategoryAuth).
	WithTextCode(textCodeMissingBearer).
	WithCode(goerrors.CodeUnauthorized)

// ErrIdentityUnresolved is returned when the remote who-am-I lookup rejects
// the caller's bearer token.
var ErrIdentityUnresolved = goerrors.New("unable to resolve caller identity", goerrors.CategoryAuth).
	WithTextCode(textCodeIdentityUnresolved).
	WithCode(goerrors.CodeUnauthorized)

// ErrAdministratorRequired is returned when an authenticated caller lacks the
// administrator role assignment.
var ErrAdministratorRequired = goerrors.New("caller is not an administrator", goerrors.CategoryAuthz).
	WithTextCode(textCodeAdminRequired).
	WithCode(goerrors.CodeForbidden)

// ErrUnknownRole is returned when a role is outside the fixed allow-list.
var ErrUnknownRole = goerrors.New("role is not assignable", goerrors.CategoryValidation).
	WithTextCode(textCodeUnknownRole).
	WithCode(goerrors.CodeBadRequest)

// ErrUserNotFound is returned when the target user does not exist in the
// remote identity store.
var ErrUserNotFound = goerrors.New("user not found", goerrors.CategoryNotFound).
	WithTextCode(textCodeUserNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrRoleAlreadyAssigned marks a uniqueness conflict on the role table. It is
// an internal signal only: callers see an idempotent success, never this
// error.
var ErrRoleAlreadyAssigned = goerrors.New("role already assigned", goerrors.CategoryConflict).
	WithTextCode(textCodeRoleAlreadyAssigned).
	WithCode(goerrors.CodeConflict)

// ErrServiceKeyMissing is returned when the elevated service credential is
// absent from the runtime environment. The insert is never attempted.
var ErrServiceKeyMissing = goerrors.New("service credential not configured", goerrors.CategoryInternal).
	WithTextCode(textCodeServiceKeyMissing).
	WithCode(goerrors.CodeInternal)

// NewUpstreamError wraps an unclassified non-2xx response from the remote
// service. The status and body travel in metadata for logging; callers get
// the generic message.
func NewUpstreamError(status int, body string) *goerrors.Error {
	return goerrors.New("remote identity service request failed", goerrors.CategoryOperation).
		WithTextCode(textCodeUpstreamFailure).
		WithCode(goerrors.CodeInternal).
		WithMetadata(map[string]any{
			"upstream_status": status,
			"upstream_body":   body,
		})
}

// IsConflict reports whether err is the role-uniqueness conflict signal.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category == goerrors.CategoryConflict
	}
	return false
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return goerrors.Is(err, ErrTokenExpired) || strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return goerrors.Is(err, ErrTokenMalformed) || strings.Contains(err.Error(), "token is malformed")
}
