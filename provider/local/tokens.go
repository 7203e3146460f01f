package local

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

var ErrTokenInvalid = goerrors.New("session token is invalid", goerrors.CategoryAuth).
	WithTextCode("TOKEN_INVALID").
	WithCode(goerrors.CodeUnauthorized)

// SessionClaims are the claims carried by local access tokens.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// TokenIssuer mints and validates HS256 access tokens.
type TokenIssuer struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
	now        func() time.Time
}

// NewTokenIssuer returns a TokenIssuer. A non-positive ttl defaults to one
// hour.
func NewTokenIssuer(signingKey []byte, issuer string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenIssuer{
		signingKey: signingKey,
		issuer:     issuer,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Issue signs a token for the user and returns it with its expiry.
func (t *TokenIssuer) Issue(userID, email string) (string, time.Time, error) {
	now := t.now()
	expires := now.Add(t.ttl)
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    t.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Email: email,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.signingKey)
	if err != nil {
		return "", time.Time{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign session token")
	}
	return signed, expires, nil
}

// Validate parses token and returns its claims.
func (t *TokenIssuer) Validate(token string) (*SessionClaims, error) {
	opts := []jwt.ParserOption{jwt.WithTimeFunc(t.now)}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &SessionClaims{}, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.signingKey, nil
	}, opts...)
	if err != nil {
		clone := ErrTokenInvalid.Clone()
		clone.Source = err
		return nil, clone
	}

	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
