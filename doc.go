// Package authgate implements the session lifecycle and authorization core of
// the clinic platform: token decoding and expiry evaluation, the session state
// machine consumed by the rendering layer, role-based access decisions, and
// the payload/error contracts of the HTTP gateway that proxies privileged
// identity operations to the remote identity service.
//
// Session lifecycle:
//   - SessionManager owns the one SessionState instance for a composition
//     root. Initialize evaluates the persisted token exactly once, SignIn and
//     Logout drive the authenticated/unauthenticated transitions, and Recheck
//     refreshes tokens before they lapse. A logout always wins over a stale
//     asynchronous sign-in result.
//   - Guard turns a SessionState plus a required user-type set into a pure
//     render/redirect decision; the router executing the decision stays an
//     external collaborator.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by SessionManager to
//     describe login, logout, refresh, and expiry events. Sinks run
//     best-effort (errors are logged) so events can be forwarded to the
//     notification relay without blocking authentication.
//
// The identity, gateway, and relay subpackages hold the remote service
// client, the Fiber proxy surface, and the webhook delivery worker.
package authgate
