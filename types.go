package authgate

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds the options shared by the identity client, gateway, and relay
type Config interface {
	GetServiceBaseURL() string
	GetAnonKey() string
	GetServiceKey() string
	GetWebhookURL() string
	GetRequestTimeout() time.Duration
	GetClockSkew() time.Duration
	GetRefreshThreshold() time.Duration
}

// AuthSession is the token bundle issued by the remote identity service on a
// successful password or refresh grant.
type AuthSession struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token,omitempty"`
	User         *UserRecord `json:"user,omitempty"`
}

// SessionIssuer is the slice of the remote identity client the session
// manager depends on.
type SessionIssuer interface {
	SignInWithPassword(ctx context.Context, email, password string) (*AuthSession, error)
	RefreshSession(ctx context.Context, refreshToken string) (*AuthSession, error)
}

// StateStore persists client-side session state across reloads: the current
// token pair, the user record, and the last known user-type hint. Logout
// clears all of it together; a hard expiry drops only the session half so the
// hint can still steer the next login redirect.
type StateStore interface {
	Session() (token, refreshToken string, user *UserRecord)
	SaveSession(token, refreshToken string, user *UserRecord)
	DropSession()
	UserTypeHint() UserType
	SaveUserTypeHint(hint UserType)
	Clear()
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTHGATE "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTHGATE "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTHGATE "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTHGATE "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
