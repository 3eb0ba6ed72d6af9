package auth

import (
	"errors"
	"fmt"
	"time"

	"miyan-backend/internal/access"
	"miyan-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

type JWTCustomClaims struct {
	UserID  uint            `json:"user_id"`
	Name    string          `json:"name"`
	Email   string          `json:"email"`
	Role    models.UserRole `json:"role"`
	StaffID *uint           `json:"staff_id"`
	jwt.RegisteredClaims
}

// GenerateToken signs an HS256 access token. staffID is nil for accounts
// without a staff profile.
func GenerateToken(secret string, ttl time.Duration, user *models.User, staffID *uint) (string, error) {
	now := time.Now()
	claims := &JWTCustomClaims{
		UserID:  user.ID,
		Name:    user.Name,
		Email:   user.Email,
		Role:    user.Role,
		StaffID: staffID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken verifies signature and expiry and returns the caller it names.
func ParseToken(secret, tokenStr string) (access.Caller, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &JWTCustomClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return access.Caller{}, err
	}
	claims, ok := token.Claims.(*JWTCustomClaims)
	if !ok || !token.Valid {
		return access.Caller{}, errors.New("invalid token claims")
	}
	return access.Caller{
		UserID:  claims.UserID,
		Name:    claims.Name,
		Role:    claims.Role,
		StaffID: claims.StaffID,
	}, nil
}
