package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Session is what the server hands back after a successful login or register.
type Session struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SessionClaims pairs a user id (sub) with the client session id (sid).
type SessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

var errInvalidToken = errors.New("invalid session token")

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret []byte, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{secret: secret, ttl: ttl, now: time.Now}
}

// Issue signs a token for userID. An empty sessionID gets a fresh random one.
func (t *TokenIssuer) Issue(userID, sessionID string) (Session, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	now := t.now()
	exp := now.Add(t.ttl)
	claims := SessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}
	return Session{ID: sessionID, Token: signed, ExpiresAt: exp.UTC().Truncate(time.Second)}, nil
}

// Verify parses token and returns its claims. Expired, malformed or foreign tokens fail.
func (t *TokenIssuer) Verify(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, errInvalidToken
	}
	return claims, nil
}
