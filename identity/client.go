// Package identity implements the HTTP client for the remote identity and
// data service. Public calls carry the anonymous key, privileged writes the
// elevated service key, and who-am-I lookups the caller's bearer token; the
// three are never mixed on one request.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	authgate "github.com/clinvia/go-authgate"
)

const (
	tokenPath      = "/auth/v1/token"
	signupPath     = "/auth/v1/signup"
	whoAmIPath     = "/auth/v1/user"
	adminUsersPath = "/auth/v1/admin/users"
	rolesPath      = "/rest/v1/user_roles"
)

var _ authgate.SessionIssuer = (*Client)(nil)

// Option customizes client construction.
type Option func(*Client)

// WithHTTPClient injects the HTTP client; the default carries the configured
// request timeout so no remote call can hang past it.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger authgate.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client talks to the remote identity and data service. It holds no request
// state; every method is independent per invocation.
type Client struct {
	baseURL    string
	anonKey    string
	serviceKey string
	httpClient *http.Client
	logger     authgate.Logger
}

func New(cfg authgate.Config, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.GetServiceBaseURL(), "/"),
		anonKey:    cfg.GetAnonKey(),
		serviceKey: cfg.GetServiceKey(),
		httpClient: &http.Client{Timeout: cfg.GetRequestTimeout()},
		logger:     authgate.NewSlogLogger(nil),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// HasServiceKey reports whether the elevated credential is configured.
func (c *Client) HasServiceKey() bool {
	return c.serviceKey != ""
}

// SignInRaw forwards a password grant and returns the remote (status, body)
// pair untouched, for verbatim passthrough.
func (c *Client) SignInRaw(ctx context.Context, email, password string) (int, []byte, error) {
	query := url.Values{"grant_type": {"password"}}
	body := map[string]string{"email": email, "password": password}
	return c.do(ctx, http.MethodPost, tokenPath, query, c.anonKey, "", body, "")
}

// SignInWithPassword implements authgate.SessionIssuer.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*authgate.AuthSession, error) {
	status, body, err := c.SignInRaw(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, authgate.NewUpstreamError(status, string(body))
	}
	return decodeSession(body)
}

// RefreshSession implements authgate.SessionIssuer via the refresh-token grant.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*authgate.AuthSession, error) {
	query := url.Values{"grant_type": {"refresh_token"}}
	payload := map[string]string{"refresh_token": refreshToken}

	status, body, err := c.do(ctx, http.MethodPost, tokenPath, query, c.anonKey, "", payload, "")
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, authgate.NewUpstreamError(status, string(body))
	}
	return decodeSession(body)
}

// SignUp calls public self-registration with the anonymous key. The raw
// (status, body) pair is returned for the gateway's fallback wrapping.
func (c *Client) SignUp(ctx context.Context, params authgate.CreateUserParams, userType authgate.UserType) (int, []byte, error) {
	payload := map[string]any{
		"email":    params.Email,
		"password": params.Password,
		"data": map[string]any{
			"full_name": params.FullName,
			"phone":     params.Phone,
			"user_type": userType,
		},
	}
	return c.do(ctx, http.MethodPost, signupPath, nil, c.anonKey, "", payload, "")
}

// AdminCreateUser calls the privileged create-user endpoint with the service
// key. The raw (status, body) pair is returned so the gateway can decide
// whether to fall back.
func (c *Client) AdminCreateUser(ctx context.Context, params authgate.CreateUserParams) (int, []byte, error) {
	payload := map[string]any{
		"email":         params.Email,
		"password":      params.Password,
		"email_confirm": true,
		"user_metadata": map[string]any{
			"full_name": params.FullName,
			"phone":     params.Phone,
			"role":      params.PrimaryRole(),
		},
	}
	return c.do(ctx, http.MethodPost, adminUsersPath, nil, c.serviceKey, "", payload, "")
}

// GetUserByToken resolves the caller identity behind a bearer token (the
// who-am-I lookup). Rejections map to ErrIdentityUnresolved.
func (c *Client) GetUserByToken(ctx context.Context, bearer string) (*authgate.UserRecord, error) {
	status, body, err := c.do(ctx, http.MethodGet, whoAmIPath, nil, c.anonKey, bearer, nil, "")
	if err != nil {
		return nil, err
	}

	switch {
	case status >= 200 && status < 300:
		return decodeUser(body)
	case status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusNotFound:
		return nil, authgate.ErrIdentityUnresolved
	default:
		return nil, authgate.NewUpstreamError(status, string(body))
	}
}

// GetUserByID verifies a target user exists in the remote identity store.
// Requires the elevated key.
func (c *Client) GetUserByID(ctx context.Context, id string) (*authgate.UserRecord, error) {
	path := fmt.Sprintf("%s/%s", adminUsersPath, url.PathEscape(id))
	status, body, err := c.do(ctx, http.MethodGet, path, nil, c.serviceKey, "", nil, "")
	if err != nil {
		return nil, err
	}

	switch {
	case status >= 200 && status < 300:
		return decodeUser(body)
	case status == http.StatusNotFound:
		return nil, authgate.ErrUserNotFound
	default:
		return nil, authgate.NewUpstreamError(status, string(body))
	}
}

// RoleFilter narrows a role-table query; zero fields are omitted from the
// filter query parameters.
type RoleFilter struct {
	UserID string
	Role   authgate.UserType
}

// FindRoleAssignments queries the role table with the caller's bearer token.
// Row visibility is whatever the remote store's policies grant that caller.
func (c *Client) FindRoleAssignments(ctx context.Context, bearer string, filter RoleFilter) ([]authgate.RoleAssignment, error) {
	query := url.Values{"select": {"*"}}
	if filter.UserID != "" {
		query.Set("user_id", "eq."+filter.UserID)
	}
	if filter.Role != "" {
		query.Set("role", "eq."+string(filter.Role))
	}

	status, body, err := c.do(ctx, http.MethodGet, rolesPath, query, c.anonKey, bearer, nil, "")
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, authgate.NewUpstreamError(status, string(body))
	}

	var assignments []authgate.RoleAssignment
	if err := json.Unmarshal(body, &assignments); err != nil {
		return nil, authgate.NewUpstreamError(status, "unparsable role assignment list")
	}
	return assignments, nil
}

// InsertRoleAssignment writes a role row with the elevated service key. A
// uniqueness conflict surfaces as ErrRoleAlreadyAssigned; the caller maps it
// to an idempotent success.
func (c *Client) InsertRoleAssignment(ctx context.Context, userID string, role authgate.UserType) (*authgate.RoleAssignment, error) {
	payload := map[string]any{"user_id": userID, "role": role}

	status, body, err := c.do(ctx, http.MethodPost, rolesPath, nil, c.serviceKey, "", payload, "return=representation")
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusConflict:
		return nil, authgate.ErrRoleAlreadyAssigned
	case status < 200 || status >= 300:
		return nil, authgate.NewUpstreamError(status, string(body))
	}

	// The store answers representation requests with a row list.
	var rows []authgate.RoleAssignment
	if err := json.Unmarshal(body, &rows); err == nil && len(rows) > 0 {
		return &rows[0], nil
	}

	var row authgate.RoleAssignment
	if err := json.Unmarshal(body, &row); err == nil && row.UserID != "" {
		return &row, nil
	}

	return &authgate.RoleAssignment{UserID: userID, Role: role}, nil
}

// do performs one request. key goes out as the service's api key header;
// bearer, when set, becomes the Authorization header, otherwise the key
// doubles as bearer the way the remote service expects.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, key, bearer string, payload any, prefer string) (int, []byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("identity: encode request payload: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("identity: build request: %w", err)
	}

	req.Header.Set("apikey", key)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	} else if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("identity service request failed", "method", method, "path", path, "error", err)
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("identity: read response body: %w", err)
	}

	return resp.StatusCode, body, nil
}

type remoteUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

type sessionEnvelope struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	User         *remoteUser `json:"user"`
}

func decodeSession(body []byte) (*authgate.AuthSession, error) {
	var envelope sessionEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("identity: decode session response: %w", err)
	}

	session := &authgate.AuthSession{
		AccessToken:  envelope.AccessToken,
		RefreshToken: envelope.RefreshToken,
	}
	if envelope.User != nil {
		session.User = envelope.User.record()
	}
	return session, nil
}

func decodeUser(body []byte) (*authgate.UserRecord, error) {
	var user remoteUser
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("identity: decode user response: %w", err)
	}
	if user.ID == "" {
		return nil, authgate.ErrIdentityUnresolved
	}
	return user.record(), nil
}

func (u *remoteUser) record() *authgate.UserRecord {
	record := &authgate.UserRecord{
		ID:      u.ID,
		Email:   u.Email,
		Profile: u.UserMetadata,
	}

	if u.UserMetadata != nil {
		if name, ok := u.UserMetadata["full_name"].(string); ok {
			record.Name = name
		} else if name, ok := u.UserMetadata["name"].(string); ok {
			record.Name = name
		}
		if raw, ok := u.UserMetadata["user_type"].(string); ok {
			if t, valid := authgate.ParseUserType(raw); valid {
				record.UserType = t
			}
		}
	}

	if record.UserType == "" {
		record.UserType = authgate.UserTypeProfessional
	}

	return record
}
