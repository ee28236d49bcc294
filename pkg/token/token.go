package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yuditriaji/restopos-backend/pkg/rbac"
)

// OrderingSystem is the only service allowed to call the server-to-server routes
const OrderingSystem = "ordering-system"

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token expired")
	ErrUnknownService = errors.New("unauthorized service")
)

// Principal is the authenticated actor a token speaks for
type Principal struct {
	ID         string    `json:"id"`
	Role       rbac.Role `json:"role"`
	ShopID     string    `json:"shopId"`
	ShopName   string    `json:"shopName"`
	BranchID   string    `json:"branchId,omitempty"`
	BranchName string    `json:"branchName,omitempty"`
}

// Claims is the JWT payload of a principal token
type Claims struct {
	Principal
	jwt.RegisteredClaims
}

// ServiceClaims is the JWT payload of a server-to-server token
type ServiceClaims struct {
	Service string `json:"service"`
	ShopID  string `json:"shopId,omitempty"`
	jwt.RegisteredClaims
}

// Manager issues and verifies principal and service tokens
type Manager struct {
	secret        []byte
	serviceSecret []byte
	ttl           time.Duration
	now           func() time.Time
}

func NewManager(secret, serviceSecret string, ttl time.Duration) *Manager {
	return &Manager{
		secret:        []byte(secret),
		serviceSecret: []byte(serviceSecret),
		ttl:           ttl,
		now:           time.Now,
	}
}

// TTL returns how long an issued principal token stays valid
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a token for p that expires after the manager's TTL
func (m *Manager) Issue(p Principal) (string, error) {
	now := m.now()
	claims := Claims{
		Principal: p,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify checks signature and expiry and returns the embedded principal
func (m *Manager) Verify(raw string) (*Principal, error) {
	claims := &Claims{}
	if err := m.parse(raw, claims, m.secret); err != nil {
		return nil, err
	}
	if _, ok := rbac.Parse(string(claims.Role)); !ok {
		return nil, ErrInvalidToken
	}
	return &claims.Principal, nil
}

// IssueService signs a server-to-server token. ttl <= 0 means no expiry.
func (m *Manager) IssueService(service, shopID string, ttl time.Duration) (string, error) {
	now := m.now()
	claims := ServiceClaims{
		Service: service,
		ShopID:  shopID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.serviceSecret)
}

// VerifyService checks a service token and that it was issued to the ordering system
func (m *Manager) VerifyService(raw string) (*ServiceClaims, error) {
	claims := &ServiceClaims{}
	if err := m.parse(raw, claims, m.serviceSecret); err != nil {
		return nil, err
	}
	if claims.Service != OrderingSystem {
		return nil, ErrUnknownService
	}
	return claims, nil
}

func (m *Manager) parse(raw string, claims jwt.Claims, secret []byte) error {
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithTimeFunc(m.now))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpiredToken
	default:
		return ErrInvalidToken
	}
}
