// Package token implements the signed identity token codec. Tokens are
// compact HS256 JWTs carrying subject, issued-at and expiry claims. Validity
// is determined entirely by the token itself; there is no server-side record
// and no revocation before natural expiry.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// minKeyBytes is the minimum signing key length (256 bits of entropy).
const minKeyBytes = 32

var (
	// ErrKeyTooShort is returned when the configured secret is weaker than 256 bits.
	ErrKeyTooShort = errors.New("token: signing key must be at least 32 bytes")
	// ErrMalformed is returned when a token fails signature or structural checks.
	ErrMalformed = errors.New("token: malformed or invalid signature")
)

// Codec issues and verifies identity tokens with a single symmetric key.
// The key is read-only after construction, so a Codec is safe for
// unrestricted concurrent use. Key rotation is not supported.
type Codec struct {
	key    []byte
	parser *jwt.Parser
	now    func() time.Time
}

// NewCodec builds a Codec from the configured signing secret.
func NewCodec(secret string) (*Codec, error) {
	if len(secret) < minKeyBytes {
		return nil, ErrKeyTooShort
	}
	return &Codec{
		key: []byte(secret),
		// Expiry is a claim inspected separately via IsExpired; the parser
		// only establishes signature and structural validity.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
		now: time.Now,
	}, nil
}

// Issue signs a token binding subject to an expiry ttl from now. Extra claims
// are merged in but never override the registered ones.
func (c *Codec) Issue(subject string, ttl time.Duration, extra map[string]any) (string, error) {
	now := c.now()
	claims := jwt.MapClaims{}
	for k, v := range extra {
		claims[k] = v
	}
	claims["sub"] = subject
	claims["iat"] = jwt.NewNumericDate(now)
	claims["exp"] = jwt.NewNumericDate(now.Add(ttl))

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// Parse verifies signature and structure and returns the claims. Expired but
// otherwise intact tokens parse successfully.
func (c *Codec) Parse(tokenString string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	parsed, err := c.parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return c.key, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrMalformed
	}
	return claims, nil
}

// Subject returns the subject claim, or an error when the token cannot be
// parsed or carries no subject.
func (c *Codec) Subject(tokenString string) (string, error) {
	claims, err := c.Parse(tokenString)
	if err != nil {
		return "", err
	}
	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return "", ErrMalformed
	}
	return subject, nil
}

// IsExpired reports whether the token is past its expiry. Unparseable tokens
// and tokens without an expiry claim count as expired (fail closed).
func (c *Codec) IsExpired(tokenString string) bool {
	claims, err := c.Parse(tokenString)
	if err != nil {
		return true
	}
	expiry, err := claims.GetExpirationTime()
	if err != nil || expiry == nil {
		return true
	}
	return !c.now().Before(expiry.Time)
}
