package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"catalog_gateway/internal/config"
)

// Auth types recorded in admin tokens
const (
	AuthTypeUser    = "user"
	AuthTypeService = "service"
)

// DefaultTokenTTL bounds the lifetime of issued admin tokens
const DefaultTokenTTL = 15 * time.Minute

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNoRoles      = errors.New("token carries no valid role")
)

// AdminClaims are the claims of an admin JWT.
type AdminClaims struct {
	AdminID  string   `json:"admin_id"`
	Roles    []string `json:"roles"`
	AuthType string   `json:"auth_type"`
	jwt.RegisteredClaims
}

// GenerateAdminJWT signs a short-lived admin token.
func GenerateAdminJWT(adminID string, roles []Role, authType string, ttl time.Duration, cfg *config.Config) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if authType == "" {
		authType = AuthTypeUser
	}

	names := make([]string, 0, len(roles))
	for _, r := range roles {
		if !r.IsValid() {
			return "", time.Time{}, fmt.Errorf("invalid role %q", r)
		}
		names = append(names, r.String())
	}
	if len(names) == 0 {
		return "", time.Time{}, ErrNoRoles
	}

	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := AdminClaims{
		AdminID:  adminID,
		Roles:    names,
		AuthType: authType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   adminID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedToken, err := token.SignedString(cfg.JWTSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signedToken, expiresAt, nil
}

// ValidateAdminJWT verifies signature, expiry and roles of an admin token
func ValidateAdminJWT(tokenString string, cfg *config.Config) (*AdminClaims, error) {
	claims := &AdminClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return cfg.JWTSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.AdminID == "" {
		return nil, ErrInvalidToken
	}

	valid := claims.Roles[:0]
	for _, r := range claims.Roles {
		if Role(r).IsValid() {
			valid = append(valid, r)
		}
	}
	if len(valid) == 0 {
		return nil, ErrNoRoles
	}
	claims.Roles = valid
	return claims, nil
}
