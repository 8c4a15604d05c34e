package utils

import (
	"errors"
	"time"

	"tourly/config"
	"tourly/models"

	"github.com/golang-jwt/jwt"
)

func secretKey() []byte {
	secret := config.AppConfig.JWTSecret
	if secret == "" {
		secret = "tourly-dev-secret"
	}
	return []byte(secret)
}

// GenerateToken creates a signed JWT token with the given subject and role.
// The token expires after the specified duration. Issuing tokens is the
// identity collaborator's job; this exists for tooling and tests.
func GenerateToken(subject string, role models.Role, duration time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": string(role),
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(duration).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secretKey())
}

// ValidateToken parses and validates a token string and returns the token if valid.
func ValidateToken(tokenString string) (*jwt.Token, error) {
	return jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Ensure that the token's signing method is HMAC.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secretKey(), nil
	})
}

// ExtractActorFromToken pulls the already-authenticated actor (subject id and
// role) out of a valid token string.
func ExtractActorFromToken(tokenString string) (models.Actor, error) {
	token, err := ValidateToken(tokenString)
	if err != nil {
		return models.Actor{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return models.Actor{}, errors.New("invalid token")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return models.Actor{}, errors.New("token does not contain a valid 'sub' claim")
	}

	roleStr, _ := claims["role"].(string)
	switch models.Role(roleStr) {
	case models.RoleUser, models.RoleAgent, models.RoleAdmin:
	default:
		return models.Actor{}, errors.New("token does not contain a valid 'role' claim")
	}

	return models.Actor{ID: sub, Role: models.Role(roleStr)}, nil
}
