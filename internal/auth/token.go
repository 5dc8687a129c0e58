package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/stocksaas/stocksaas/internal/rbac"
	"github.com/stocksaas/stocksaas/internal/shared"
)

const minSecretLength = 32

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = fmt.Errorf("auth: invalid token: %w", shared.ErrUnauthenticated)

// Claims is the bearer token payload.
type Claims struct {
	jwt.RegisteredClaims
	TenantID    string   `json:"tenant_id"`
	Username    string   `json:"username,omitempty"`
	Email       string   `json:"email,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// Principal rebuilds the principal carried by c. Unknown roles and permissions are dropped.
func (c *Claims) Principal() (*Principal, error) {
	userID, err := uuid.Parse(c.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: subject", ErrInvalidToken)
	}
	tenantID, err := uuid.Parse(c.TenantID)
	if err != nil || tenantID == uuid.Nil {
		return nil, fmt.Errorf("%w: tenant", ErrInvalidToken)
	}
	roles := rbac.NewRoleSet()
	for _, r := range c.Roles {
		if role, err := rbac.ParseRole(r); err == nil {
			roles[role] = struct{}{}
		}
	}
	grants := rbac.NewPermissionSet()
	for _, code := range c.Permissions {
		if p, err := rbac.PermissionByCode(code); err == nil {
			grants.Add(p)
		}
	}
	return &Principal{
		UserID:   userID,
		TenantID: tenantID,
		Username: c.Username,
		Email:    c.Email,
		Roles:    roles,
		Grants:   grants,
		Enabled:  true,
	}, nil
}

// Token is an issued bearer token.
type Token struct {
	Value     string    `json:"token"`
	Type      string    `json:"tokenType"`
	ID        string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// TokenManager issues and verifies HS256 bearer tokens.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager validates the key material and returns a TokenManager.
func NewTokenManager(secret, issuer string, ttl time.Duration) (*TokenManager, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("auth: jwt secret must be at least %d bytes", minSecretLength)
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenManager{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for p.
func (m *TokenManager) Issue(p *Principal) (Token, error) {
	now := m.now()
	id := uuid.NewString()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   p.UserID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        id,
		},
		TenantID:    p.TenantID.String(),
		Username:    p.Username,
		Email:       p.Email,
		Roles:       p.GrantedRoles().Strings(),
		Permissions: rbac.NewPermissionSet().Union(p.Grants).Strings(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return Token{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return Token{Value: signed, Type: "Bearer", ID: id, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Verify checks the signature, issuer and validity window of raw.
func (m *TokenManager) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	token, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: expired", ErrInvalidToken)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
