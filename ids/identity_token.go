package ids

import (
	"errors"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt/v5"
)

// IdentityToken is the triple the server hands back on a successful
// handshake: identity, bearer token string, and connection id, plus the
// validity window extracted from the token's claims.
type IdentityToken struct {
	Identity     Identity
	Token        string
	ConnectionID ConnectionID
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

// Minimum/maximum accepted bearer token length. Mirrors the structural
// validation original_source/cross_platform_validation.py performs before
// trusting a token string.
const (
	minTokenLen = 16
	maxTokenLen = 8192
)

// ValidateTokenShape checks the structural rules spec.md §3 requires of a
// bearer token: length bounds and printable-ASCII charset. It does not
// verify a signature — RiftDB tokens are opaque to the client and are
// presented back to the server as-is.
func ValidateTokenShape(token string) error {
	if len(token) < minTokenLen || len(token) > maxTokenLen {
		return errors.New("ids: token length out of bounds")
	}
	for _, r := range token {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) {
			return errors.New("ids: token contains non-printable-ASCII byte")
		}
	}
	return nil
}

// claims is the subset of JWT claims RiftDB tokens carry. Parsing (not
// verifying) them lets the client surface issued-at/expires-at without a
// second round trip, grounded on golang-jwt/jwt/v5 the same way
// adred-codev-ws_poc/go-server uses it for session tokens.
type claims struct {
	jwt.RegisteredClaims
}

// ParseIdentityToken decodes the unverified claims of a bearer token to
// recover its issued-at/expires-at window. The signature is the server's
// concern; the client only needs the structural envelope.
func ParseIdentityToken(identity Identity, token string, connID ConnectionID) (IdentityToken, error) {
	if err := ValidateTokenShape(token); err != nil {
		return IdentityToken{}, err
	}

	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	var c claims
	if _, _, err := parser.ParseUnverified(token, &c); err != nil {
		// Not every deployment mints JWT-shaped tokens; fall back to a
		// token with no known expiry rather than rejecting it outright.
		return IdentityToken{
			Identity:     identity,
			Token:        token,
			ConnectionID: connID,
		}, nil
	}

	it := IdentityToken{
		Identity:     identity,
		Token:        token,
		ConnectionID: connID,
	}
	if c.IssuedAt != nil {
		it.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		it.ExpiresAt = c.ExpiresAt.Time
	}
	return it, nil
}

// Expired reports whether the token's expiry has passed as of now. A token
// with no known expiry is treated as never expiring.
func (t IdentityToken) Expired(now time.Time) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return now.After(t.ExpiresAt)
}
