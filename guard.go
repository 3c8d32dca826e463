package authgate

import "sync"

// DecisionKind classifies the outcome of an authorization check.
type DecisionKind string

const (
	// DecisionWait renders nothing: either the session is still loading or a
	// redirect is already in flight.
	DecisionWait DecisionKind = "wait"
	// DecisionRender allows the protected content through.
	DecisionRender DecisionKind = "render"
	// DecisionRedirect sends the visitor to RedirectTo.
	DecisionRedirect DecisionKind = "redirect"
)

// Decision is what the rendering layer executes; the guard itself never
// touches a router.
type Decision struct {
	Kind       DecisionKind
	RedirectTo string
}

// Decide is the pure authorization decision. required lists the user types
// allowed to see the view; empty means any authenticated user. hint is the
// last known user-type hint steering the login redirect for anonymous
// visitors.
//
// Loading sessions render nothing and make no redirect decision. Wrong-type
// users are sent to their own home route, never to a login route.
func Decide(state SessionState, required []UserType, hint UserType) Decision {
	switch state.Status {
	case StatusLoading:
		return Decision{Kind: DecisionWait}
	case StatusAuthenticated:
		if state.User == nil {
			return Decision{Kind: DecisionRedirect, RedirectTo: LoginRouteFor(hint)}
		}
		if len(required) == 0 || containsUserType(required, state.User.UserType) {
			return Decision{Kind: DecisionRender}
		}
		return Decision{Kind: DecisionRedirect, RedirectTo: HomeRouteFor(state.User.UserType)}
	default:
		return Decision{Kind: DecisionRedirect, RedirectTo: LoginRouteFor(hint)}
	}
}

// Guard wraps Decide with the stateful pieces: the persisted user-type hint
// and the redirect-in-flight latch that stops repeated redirects while the
// router is still navigating.
type Guard struct {
	store  StateStore
	logger Logger

	mu          sync.Mutex
	redirecting bool
}

func NewGuard(store StateStore, logger Logger) *Guard {
	if logger == nil {
		logger = defLogger{}
	}
	return &Guard{store: store, logger: logger}
}

// Authorize computes the decision for the current state. While a redirect is
// in flight, further redirect decisions collapse to DecisionWait; the latch
// resets as soon as a decision completes without redirecting.
func (g *Guard) Authorize(state SessionState, required ...UserType) Decision {
	decision := Decide(state, required, g.store.UserTypeHint())

	g.mu.Lock()
	defer g.mu.Unlock()

	switch decision.Kind {
	case DecisionRedirect:
		if g.redirecting {
			return Decision{Kind: DecisionWait}
		}
		g.redirecting = true
		g.logger.Debug("guard redirecting to %s", decision.RedirectTo)
	case DecisionRender, DecisionWait:
		if decision.Kind == DecisionRender {
			g.redirecting = false
		}
	}

	return decision
}

// Reset clears the redirect latch; hosts call it when navigation settles.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.redirecting = false
}

func containsUserType(list []UserType, t UserType) bool {
	for _, candidate := range list {
		if candidate == t {
			return true
		}
	}
	return false
}
