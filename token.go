package authgate

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultClockSkew is the grace window granted AFTER nominal expiry. A
	// token is only treated as expired once now >= exp + skew.
	DefaultClockSkew = 60 * time.Second

	// DefaultRefreshThreshold is how long before expiry a proactive refresh
	// becomes due.
	DefaultRefreshThreshold = 300 * time.Second
)

// TokenClaims is the decoded claim segment of a session token. Tokens are
// issued by the remote identity service; we only read them, we never verify
// or mint signatures here.
type TokenClaims struct {
	jwt.RegisteredClaims
	Email    string         `json:"email,omitempty"`
	Role     string         `json:"role,omitempty"`
	Metadata map[string]any `json:"user_metadata,omitempty"`
}

// ExpiresAt returns the exp claim and whether the token carries one.
func (c *TokenClaims) ExpiresAt() (time.Time, bool) {
	if c == nil || c.RegisteredClaims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return c.RegisteredClaims.ExpiresAt.Time, true
}

// DecodeToken parses the claim segment of a session token without verifying
// the signature. Malformed input yields nil, never a panic or an error: the
// caller treats nil as an always-expired credential.
func DecodeToken(raw string) *TokenClaims {
	if raw == "" {
		return nil
	}

	claims := &TokenClaims{}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil
	}

	return claims
}

// ValidateToken decodes raw and judges it against the expiry policy in one
// step. It returns the claims when the token is usable at now,
// ErrTokenMalformed when the claim segment cannot be decoded, and
// ErrTokenExpired once the grace window has passed.
func ValidateToken(raw string, now time.Time, skew time.Duration) (*TokenClaims, error) {
	claims := DecodeToken(raw)
	if claims == nil {
		return nil, ErrTokenMalformed
	}
	if IsExpired(claims, now, skew) {
		return nil, ErrTokenExpired
	}
	return claims, nil
}

// IsExpired reports whether claims are past their grace window at now:
// expired iff now >= exp + skew. The grace period sits after nominal expiry,
// not before it. A token with no exp claim never expires; nil (malformed)
// claims are always expired.
func IsExpired(claims *TokenClaims, now time.Time, skew time.Duration) bool {
	if claims == nil {
		return true
	}
	exp, ok := claims.ExpiresAt()
	if !ok {
		return false
	}
	return ExpiryPassed(exp, now, skew)
}

// ExpiryPassed is the timestamp form of IsExpired for callers that already
// hold an expiry instant.
func ExpiryPassed(exp, now time.Time, skew time.Duration) bool {
	return !now.Before(exp.Add(skew))
}

// ShouldRefresh reports whether a proactive refresh is due: true iff
// now >= exp - threshold. Independent of IsExpired; a token can be inside,
// past, or before both windows. Tokens without exp never request a refresh;
// malformed claims always do.
func ShouldRefresh(claims *TokenClaims, now time.Time, threshold time.Duration) bool {
	if claims == nil {
		return true
	}
	exp, ok := claims.ExpiresAt()
	if !ok {
		return false
	}
	return RefreshDue(exp, now, threshold)
}

// RefreshDue is the timestamp form of ShouldRefresh.
func RefreshDue(exp, now time.Time, threshold time.Duration) bool {
	return !now.Before(exp.Add(-threshold))
}
