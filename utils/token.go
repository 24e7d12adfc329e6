package authUtils

import (
	"errors"
	"fmt"
	"time"

	"civicsync-issues/models"

	"github.com/dgrijalva/jwt-go"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrAuth is returned when a credential is missing, malformed or expired.
var ErrAuth = errors.New("authentication failed")

// Claims is the payload carried by session tokens.
type Claims struct {
	UserID string      `json:"user_id"`
	Role   models.Role `json:"role"`
	jwt.StandardClaims
}

// GenerateToken signs a token for the given user that expires after ttl
func GenerateToken(secret string, userID primitive.ObjectID, role models.Role, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("JWT secret is not configured")
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: userID.Hex(),
		Role:   role,
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
	})

	return token.SignedString([]byte(secret))
}

// ParseToken verifies tokenString and returns the identity it carries.
func ParseToken(secret, tokenString string) (models.Caller, error) {
	if tokenString == "" {
		return models.Caller{}, fmt.Errorf("%w: no token provided", ErrAuth)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return models.Caller{}, fmt.Errorf("%w: %v", ErrAuth, err)
	}

	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return models.Caller{}, fmt.Errorf("%w: invalid token claims", ErrAuth)
	}
	role := claims.Role
	if role == "" {
		role = models.RoleResident
	}
	if !role.Valid() {
		return models.Caller{}, fmt.Errorf("%w: unknown role %q", ErrAuth, role)
	}

	return models.Caller{UserID: userID, Role: role}, nil
}
