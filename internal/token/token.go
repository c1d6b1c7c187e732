// Package token issues and verifies the signed access and refresh tokens
// that carry a user's identity snapshot.  Access and refresh tokens are
// signed with two independent secrets; verification never reveals whether
// the signature or the expiry failed.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/memflow/lowcode-backend/internal/model"
)

// ErrInvalidOrExpired is the single failure returned by Verify.  Signature
// problems, malformed tokens and expiry all collapse into it so callers
// cannot tell (and cannot leak) which check failed.
var ErrInvalidOrExpired = errors.New("invalid or expired token")

// Kind selects which secret and TTL a token is issued or verified against.
type Kind int

const (
	KindAccess Kind = iota
	KindRefresh
)

// Identity is the snapshot of a user embedded in every token.  It is all a
// request needs for authorization decisions; no database lookup is required
// to accept an access token.
type Identity struct {
	ID       uint64     `json:"id"`
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Role     model.Role `json:"role"`
	Avatar   string     `json:"avatar,omitempty"`
}

// Service signs and verifies HS256 JWTs.  The two secrets must be
// independent: a refresh token presented where an access token is expected
// fails verification because the signature does not match.
type Service struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// New builds a Service from the two signing secrets and TTLs.
func New(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// IssueAccess signs a short-lived access token for the given identity.
func (s *Service) IssueAccess(id Identity) (string, error) {
	return s.issue(id, s.accessSecret, s.accessTTL)
}

// IssueRefresh signs a long-lived refresh token for the given identity.
// Refresh tokens are never persisted; their validity is purely
// cryptographic plus expiry.
func (s *Service) IssueRefresh(id Identity) (string, error) {
	return s.issue(id, s.refreshSecret, s.refreshTTL)
}

func (s *Service) issue(id Identity, secret []byte, ttl time.Duration) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":      id.ID,
		"username": id.Username,
		"email":    id.Email,
		"role":     uint8(id.Role),
		"avatar":   id.Avatar,
		"iat":      now.Unix(),
		"exp":      now.Add(ttl).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

// Verify checks signature and expiry in a single parse and returns the
// embedded identity.  Any failure is ErrInvalidOrExpired.
func (s *Service) Verify(raw string, kind Kind) (Identity, error) {
	secret := s.accessSecret
	if kind == KindRefresh {
		secret = s.refreshSecret
	}
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidOrExpired
		}
		return secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return Identity{}, ErrInvalidOrExpired
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidOrExpired
	}
	id := Identity{}
	if v, ok := claims["sub"].(float64); ok {
		id.ID = uint64(v)
	}
	if v, ok := claims["username"].(string); ok {
		id.Username = v
	}
	if v, ok := claims["email"].(string); ok {
		id.Email = v
	}
	if v, ok := claims["role"].(float64); ok {
		id.Role = model.Role(v)
	}
	if v, ok := claims["avatar"].(string); ok {
		id.Avatar = v
	}
	if id.Username == "" {
		return Identity{}, ErrInvalidOrExpired
	}
	return id, nil
}
