package authgate

import (
	"context"
	"sync"
	"time"
)

// SessionManagerOption customizes session manager construction.
type SessionManagerOption func(*SessionManager)

// WithManagerClock injects a custom clock (useful for tests).
func WithManagerClock(clock func() time.Time) SessionManagerOption {
	return func(m *SessionManager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithManagerLogger overrides the default logger.
func WithManagerLogger(logger Logger) SessionManagerOption {
	return func(m *SessionManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithManagerActivitySink sets the ActivitySink used to publish session events.
func WithManagerActivitySink(sink ActivitySink) SessionManagerOption {
	return func(m *SessionManager) {
		m.activitySink = normalizeActivitySink(sink)
	}
}

// WithClockSkew overrides the post-expiry grace window.
func WithClockSkew(skew time.Duration) SessionManagerOption {
	return func(m *SessionManager) {
		if skew >= 0 {
			m.skew = skew
		}
	}
}

// WithRefreshThreshold overrides how long before expiry a refresh is due.
func WithRefreshThreshold(threshold time.Duration) SessionManagerOption {
	return func(m *SessionManager) {
		if threshold >= 0 {
			m.refreshThreshold = threshold
		}
	}
}

// SessionManager owns the SessionState for one composition root. It replaces
// the process-wide auth singleton: the host constructs exactly one instance,
// injects it into consumers, and tears it down with the root.
//
// The manager is safe for concurrent use. Remote calls happen outside the
// lock; every asynchronous outcome carries the epoch it started under and is
// discarded if a logout bumped the epoch in the meantime.
type SessionManager struct {
	issuer           SessionIssuer
	store            StateStore
	logger           Logger
	activitySink     ActivitySink
	now              func() time.Time
	skew             time.Duration
	refreshThreshold time.Duration

	mu          sync.Mutex
	epoch       uint64
	initialized bool
	state       SessionState
	listeners   []func(SessionState)
}

// NewSessionManager returns a manager in the loading state. Initialize must
// run once before the state is meaningful.
func NewSessionManager(issuer SessionIssuer, store StateStore, opts ...SessionManagerOption) *SessionManager {
	m := &SessionManager{
		issuer:           issuer,
		store:            store,
		logger:           defLogger{},
		activitySink:     noopActivitySink{},
		now:              time.Now,
		skew:             DefaultClockSkew,
		refreshThreshold: DefaultRefreshThreshold,
		state:            SessionState{Status: StatusLoading},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// State returns a copy of the current session state.
func (m *SessionManager) State() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers a listener invoked after every state change. Listeners
// run outside the manager lock, on the goroutine that caused the change.
func (m *SessionManager) Subscribe(fn func(SessionState)) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Initialize evaluates the persisted token and resolves the loading state.
// It runs its check exactly once; repeated calls (re-renders) return the
// current state without re-evaluating.
func (m *SessionManager) Initialize(ctx context.Context) SessionState {
	m.mu.Lock()
	if m.initialized {
		state := m.state
		m.mu.Unlock()
		return state
	}
	m.initialized = true

	token, _, user := m.store.Session()
	_, err := ValidateToken(token, m.now(), m.skew)

	switch {
	case token == "":
		m.state = unauthenticatedState()
	case IsMalformedError(err):
		m.logger.Warn("stored session token is malformed, discarding")
		m.store.DropSession()
		m.state = unauthenticatedState()
	case IsTokenExpiredError(err):
		m.logger.Info("stored session token is expired, discarding")
		m.store.DropSession()
		m.state = unauthenticatedState()
	case user == nil:
		m.logger.Warn("stored session has no user record, discarding")
		m.store.DropSession()
		m.state = unauthenticatedState()
	default:
		m.store.SaveUserTypeHint(user.UserType)
		m.state = authenticatedState(token, user)
	}

	state := m.state
	listeners := m.snapshotListeners()
	m.mu.Unlock()

	m.fanOut(listeners, state)
	return state
}

// SignIn exchanges credentials for a session through the remote identity
// service. Any failure surfaces as the one generic credentials error; the
// real cause is logged. A concurrent logout wins over the result.
func (m *SessionManager) SignIn(ctx context.Context, email, password string) (SessionState, error) {
	m.mu.Lock()
	startEpoch := m.epoch
	m.mu.Unlock()

	session, err := m.issuer.SignInWithPassword(ctx, email, password)
	if err != nil {
		m.logger.Error("sign-in rejected for %s: %v", email, err)
		status := m.State().Status
		m.emit(ctx, ActivityEventLoginFailure, "", status, status, map[string]any{"email": email})
		return m.State(), ErrInvalidCredentials
	}

	if session == nil || session.AccessToken == "" || session.User == nil {
		m.logger.Error("sign-in response is missing token or user")
		status := m.State().Status
		m.emit(ctx, ActivityEventLoginFailure, "", status, status, map[string]any{"email": email})
		return m.State(), ErrInvalidCredentials
	}

	user := session.User
	if !IsValidUserType(user.UserType) {
		user.UserType = UserTypeProfessional
	}

	m.mu.Lock()
	if m.epoch != startEpoch {
		// A logout landed while the sign-in was in flight; drop the result.
		state := m.state
		m.mu.Unlock()
		m.logger.Info("discarding stale sign-in result after logout")
		return state, nil
	}

	m.initialized = true
	prevStatus := m.state.Status
	m.store.SaveSession(session.AccessToken, session.RefreshToken, user)
	m.store.SaveUserTypeHint(user.UserType)
	m.state = authenticatedState(session.AccessToken, user)
	state := m.state
	listeners := m.snapshotListeners()
	m.mu.Unlock()

	m.fanOut(listeners, state)
	m.emit(ctx, ActivityEventLoginSuccess, user.ID, prevStatus, StatusAuthenticated, map[string]any{"user_type": user.UserType})
	return state, nil
}

// Logout destroys the session: the persisted state is cleared wholesale and
// the epoch moves so in-flight results cannot resurrect the session.
func (m *SessionManager) Logout(ctx context.Context) SessionState {
	m.mu.Lock()
	m.epoch++
	m.initialized = true
	userID := ""
	if m.state.User != nil {
		userID = m.state.User.ID
	}
	prevStatus := m.state.Status
	m.store.Clear()
	m.state = unauthenticatedState()
	state := m.state
	listeners := m.snapshotListeners()
	m.mu.Unlock()

	m.fanOut(listeners, state)
	m.emit(ctx, ActivityEventLogout, userID, prevStatus, StatusUnauthenticated, nil)
	return state
}

// Recheck is the scheduled re-evaluation of an authenticated session. It
// refreshes the token once the refresh window opens and demotes to
// unauthenticated on confirmed hard expiry with no usable refresh.
func (m *SessionManager) Recheck(ctx context.Context) SessionState {
	m.mu.Lock()
	startEpoch := m.epoch
	state := m.state
	m.mu.Unlock()

	if state.Status != StatusAuthenticated {
		return state
	}

	claims := DecodeToken(state.Token)
	now := m.now()

	if !ShouldRefresh(claims, now, m.refreshThreshold) && !IsExpired(claims, now, m.skew) {
		return state
	}

	_, refreshToken, _ := m.store.Session()
	refreshed, err := m.refresh(ctx, refreshToken)
	if err == nil {
		return m.adoptRefreshed(ctx, startEpoch, refreshed)
	}

	if !IsExpired(claims, m.now(), m.skew) {
		// Refresh failed but the token is still inside its grace window;
		// keep the session and let the next re-check retry.
		m.logger.Warn("session refresh failed, retrying on next check: %v", err)
		return state
	}

	return m.expire(ctx, startEpoch, state)
}

func (m *SessionManager) refresh(ctx context.Context, refreshToken string) (*AuthSession, error) {
	if refreshToken == "" {
		return nil, ErrTokenExpired
	}
	session, err := m.issuer.RefreshSession(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if session == nil || session.AccessToken == "" {
		return nil, ErrTokenExpired
	}
	return session, nil
}

func (m *SessionManager) adoptRefreshed(ctx context.Context, startEpoch uint64, session *AuthSession) SessionState {
	m.mu.Lock()
	if m.epoch != startEpoch {
		state := m.state
		m.mu.Unlock()
		m.logger.Info("discarding stale refresh result after logout")
		return state
	}

	user := session.User
	if user == nil {
		user = m.state.User
	}
	refreshToken := session.RefreshToken
	if refreshToken == "" {
		_, refreshToken, _ = m.store.Session()
	}

	m.store.SaveSession(session.AccessToken, refreshToken, user)
	m.state = authenticatedState(session.AccessToken, user)
	state := m.state
	listeners := m.snapshotListeners()
	m.mu.Unlock()

	m.fanOut(listeners, state)
	userID := ""
	if user != nil {
		userID = user.ID
	}
	m.emit(ctx, ActivityEventSessionRefreshed, userID, StatusAuthenticated, StatusAuthenticated, nil)
	return state
}

func (m *SessionManager) expire(ctx context.Context, startEpoch uint64, prev SessionState) SessionState {
	m.mu.Lock()
	if m.epoch != startEpoch {
		state := m.state
		m.mu.Unlock()
		return state
	}

	m.store.DropSession()
	m.state = unauthenticatedState()
	state := m.state
	listeners := m.snapshotListeners()
	m.mu.Unlock()

	m.fanOut(listeners, state)
	userID := ""
	if prev.User != nil {
		userID = prev.User.ID
	}
	m.emit(ctx, ActivityEventSessionExpired, userID, prev.Status, StatusUnauthenticated, nil)
	return state
}

func (m *SessionManager) snapshotListeners() []func(SessionState) {
	if len(m.listeners) == 0 {
		return nil
	}
	out := make([]func(SessionState), len(m.listeners))
	copy(out, m.listeners)
	return out
}

func (m *SessionManager) fanOut(listeners []func(SessionState), state SessionState) {
	for _, fn := range listeners {
		fn(state)
	}
}

func (m *SessionManager) emit(ctx context.Context, eventType ActivityEventType, userID string, from, to SessionStatus, metadata map[string]any) {
	sink := normalizeActivitySink(m.activitySink)
	event := ActivityEvent{
		EventType:  eventType,
		UserID:     userID,
		FromStatus: from,
		ToStatus:   to,
		Metadata:   metadata,
		OccurredAt: m.now(),
	}

	if err := sink.Record(ctx, event); err != nil {
		m.logger.Warn("activity sink record error: %v", err)
	}
}
