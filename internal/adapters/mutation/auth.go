package mutation

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"pepplus/internal/permission"
)

// ErrUnauthenticated is returned when a request carries no usable bearer token.
var ErrUnauthenticated = errors.New("unauthenticated")

// Claims is the bearer token payload: the subject becomes the audit user id
// and caps the granted permission codes.
type Claims struct {
	Capabilities []string `json:"caps"`
	jwt.RegisteredClaims
}

// Authenticator turns HS256 bearer tokens into principals.
type Authenticator struct {
	secret []byte
	reg    *permission.Registry
	now    func() time.Time
}

// NewAuthenticator verifies tokens with secret and resolves capabilities
// through reg (nil uses permission.DefaultRegistry).
func NewAuthenticator(secret []byte, reg *permission.Registry) *Authenticator {
	if reg == nil {
		reg = permission.DefaultRegistry()
	}
	return &Authenticator{secret: secret, reg: reg, now: time.Now}
}

// Issue signs a token for subject granting codes, valid for ttl.
func (a *Authenticator) Issue(subject string, codes []permission.Code, ttl time.Duration) (string, error) {
	now := a.now()
	caps := make([]string, 0, len(codes))
	for _, code := range codes {
		caps = append(caps, string(code))
	}
	claims := Claims{
		Capabilities: caps,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse validates raw and returns the principal it names.
func (a *Authenticator) Parse(raw string) (*permission.User, error) {
	if len(a.secret) == 0 {
		return nil, fmt.Errorf("%w: no signing secret configured", ErrUnauthenticated)
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}
	codes := make([]permission.Code, 0, len(claims.Capabilities))
	for _, c := range claims.Capabilities {
		codes = append(codes, permission.Code(c))
	}
	return permission.NewUser(a.reg, claims.Subject, codes...), nil
}

// FromRequest reads the Authorization: Bearer header.
func (a *Authenticator) FromRequest(r *http.Request) (*permission.User, error) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: missing bearer token", ErrUnauthenticated)
	}
	return a.Parse(strings.TrimSpace(token))
}
