package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"

	"productapi/internal/models"
)

// ErrInvalidToken is returned for any bearer token that cannot be trusted.
var ErrInvalidToken = errors.New("invalid token")

// AuthService validates bearer tokens issued by the identity provider and
// turns their claims into a Principal.
type AuthService struct {
	jwtSecret  []byte
	audience   string
	issuer     string
	tokenDurat time.Duration // Lifetime of tokens minted by IssueToken
}

// NewAuthService creates a new AuthService. Empty audience or issuer disables
// the respective check.
func NewAuthService(jwtSecret, audience, issuer string) *AuthService {
	return &AuthService{
		jwtSecret:  []byte(jwtSecret),
		audience:   audience,
		issuer:     issuer,
		tokenDurat: time.Hour,
	}
}

// IssueToken signs a token for p with the configured secret, audience and
// issuer. It exists for local development and tests; production tokens come
// from the identity provider.
func (s *AuthService) IssueToken(p models.Principal) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":         p.Subject,
		"email":       p.Email,
		"name":        p.Name,
		"permissions": p.Permissions,
		"exp":         now.Add(s.tokenDurat).Unix(),
		"iat":         now.Unix(),
	}
	if s.audience != "" {
		claims["aud"] = s.audience
	}
	if s.issuer != "" {
		claims["iss"] = s.issuer
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken parses and validates a JWT token and returns its principal.
func (s *AuthService) ValidateToken(tokenString string) (models.Principal, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return models.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return models.Principal{}, ErrInvalidToken
	}
	if s.issuer != "" && !claims.VerifyIssuer(s.issuer, true) {
		return models.Principal{}, fmt.Errorf("%w: unexpected issuer", ErrInvalidToken)
	}
	if s.audience != "" && !hasAudience(claims["aud"], s.audience) {
		return models.Principal{}, fmt.Errorf("%w: unexpected audience", ErrInvalidToken)
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return models.Principal{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)

	return models.Principal{
		Subject:     sub,
		Email:       email,
		Name:        name,
		Permissions: permissions(claims),
	}, nil
}

// hasAudience accepts both the single string and the array form of "aud".
func hasAudience(aud interface{}, want string) bool {
	switch v := aud.(type) {
	case string:
		return v == want
	case []interface{}:
		for _, a := range v {
			if s, ok := a.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}

// permissions merges the "permissions" array and the space separated "scope" claim.
func permissions(claims jwt.MapClaims) []string {
	var perms []string
	if list, ok := claims["permissions"].([]interface{}); ok {
		for _, p := range list {
			if s, ok := p.(string); ok && s != "" {
				perms = append(perms, s)
			}
		}
	}
	if scope, ok := claims["scope"].(string); ok {
		perms = append(perms, strings.Fields(scope)...)
	}
	return perms
}
