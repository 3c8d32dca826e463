package authgate

// SessionStatus is the authentication status of the session state machine
type SessionStatus string

const (
	// StatusLoading is the initial status; the stored token has not been
	// evaluated yet and nothing protected may render.
	StatusLoading SessionStatus = "loading"
	// StatusAuthenticated means a live token and a user record are present.
	StatusAuthenticated SessionStatus = "authenticated"
	// StatusUnauthenticated means there is no usable session.
	StatusUnauthenticated SessionStatus = "unauthenticated"
)

// SessionState is the single source of truth consumed by the access guard.
// Owned exclusively by the SessionManager; callers receive copies.
type SessionState struct {
	Status SessionStatus
	User   *UserRecord
	Token  string
}

// Authenticated reports whether the state satisfies the authenticated
// invariant: status, user, and token all present.
func (s SessionState) Authenticated() bool {
	return s.Status == StatusAuthenticated && s.User != nil && s.Token != ""
}

func authenticatedState(token string, user *UserRecord) SessionState {
	return SessionState{Status: StatusAuthenticated, User: user, Token: token}
}

func unauthenticatedState() SessionState {
	return SessionState{Status: StatusUnauthenticated}
}
