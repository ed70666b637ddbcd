package user

import (
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/jules-labs/lexitrace/pkg/errs"
	"github.com/jules-labs/lexitrace/pkg/ids"
)

// claims is the bearer-token payload issued under the §6.4
// `auth = {mock{tokens?}}` configuration variant: a self-signed JWT
// good enough to exercise the authenticated-request path without
// standing up a real identity provider (Firebase wiring is the
// documented alternative, left to an external collaborator per §1).
type claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// TokenIssuer mints and verifies mock-auth bearer tokens.
type TokenIssuer struct {
	signingKey []byte
	ttl        time.Duration
}

func NewTokenIssuer(signingKey string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{signingKey: []byte(signingKey), ttl: ttl}
}

// Issue returns a signed bearer token for userID with the given role.
func (t *TokenIssuer) Issue(userID ids.UserId, role Role) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
		Role: string(role),
	})

	signed, err := token.SignedString(t.signingKey)
	if err != nil {
		return "", errs.Wrap(errs.Internal, "sign bearer token", err)
	}
	return signed, nil
}

// Verify parses and validates a bearer token, returning the subject
// user id and role.
func (t *TokenIssuer) Verify(tokenString string) (ids.UserId, Role, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &claims{}, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errs.New(errs.Unauthenticated, "unexpected signing method")
		}
		return t.signingKey, nil
	})
	if err != nil || !parsed.Valid {
		return ids.UserId{}, "", errs.New(errs.Unauthenticated, "invalid or expired token")
	}

	c, ok := parsed.Claims.(*claims)
	if !ok {
		return ids.UserId{}, "", errs.New(errs.Unauthenticated, "malformed token claims")
	}

	userID, err := ids.ParseUserId(c.Subject)
	if err != nil {
		return ids.UserId{}, "", errs.New(errs.Unauthenticated, "malformed token subject")
	}
	return userID, Role(c.Role), nil
}
