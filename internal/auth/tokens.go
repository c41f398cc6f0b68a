package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"rentdesk/internal/domain"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"

	issuer = "rentdesk"
)

// Claims carried by both token types. Refresh tokens use ID (jti) for the session id.
type Claims struct {
	Account string      `json:"acc"`
	Role    domain.Role `json:"role"`
	Type    string      `json:"typ"`
	jwt.RegisteredClaims
}

// Scope converts verified claims into the caller scope.
func (c *Claims) Scope() domain.Scope {
	return domain.Scope{AccountID: c.Account, UserID: c.Subject, Role: c.Role}
}

type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewIssuer(secret string, accessTTL, refreshTTL time.Duration) (*Issuer, error) {
	if len(secret) < 16 {
		return nil, errors.New("jwt secret must be at least 16 bytes")
	}
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	return &Issuer{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL, now: time.Now}, nil
}

// WithClock replaces the time source. Tests only.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	cp := *i
	cp.now = now
	return &cp
}

func (i *Issuer) AccessTTL() time.Duration  { return i.accessTTL }
func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

func (i *Issuer) IssueAccess(u domain.User) (string, time.Time, error) {
	return i.sign(u, TypeAccess, "", i.accessTTL)
}

// IssueRefresh binds the token to sessionID so it can be revoked server-side.
func (i *Issuer) IssueRefresh(u domain.User, sessionID string) (string, time.Time, error) {
	return i.sign(u, TypeRefresh, sessionID, i.refreshTTL)
}

func (i *Issuer) sign(u domain.User, typ, jti string, ttl time.Duration) (string, time.Time, error) {
	now := i.now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		Account: u.AccountID,
		Role:    u.Role,
		Type:    typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   u.ID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", typ, err)
	}
	return s, exp, nil
}

// Parse verifies signature, expiry, issuer and token type. Every failure is
// reported as domain.ErrUnauthorized.
func (i *Issuer) Parse(token, typ string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if claims.Type != typ {
		return nil, fmt.Errorf("%w: expected %s token", domain.ErrUnauthorized, typ)
	}
	if claims.Subject == "" || claims.Account == "" {
		return nil, fmt.Errorf("%w: incomplete claims", domain.ErrUnauthorized)
	}
	if typ == TypeRefresh && claims.ID == "" {
		return nil, fmt.Errorf("%w: refresh token without session", domain.ErrUnauthorized)
	}
	return claims, nil
}
