package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/taskradar/taskradar/internal/domain"
)

const tokenTTL = 72 * time.Hour

// IssueToken signs a bearer token carrying the user id and role.
func IssueToken(secret []byte, userID uuid.UUID, role domain.Role) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID.String(),
		"role":    string(role),
		"exp":     time.Now().Add(tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a bearer token and returns the user id and role.
func ParseToken(secret []byte, header string) (uuid.UUID, domain.Role, error) {
	tokenStr, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || tokenStr == "" {
		return uuid.Nil, "", errors.New("auth: missing bearer token")
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("auth: unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return uuid.Nil, "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return uuid.Nil, "", errors.New("auth: invalid token claims")
	}
	idStr, _ := claims["user_id"].(string)
	roleStr, _ := claims["role"].(string)
	userID, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, "", errors.New("auth: invalid user id claim")
	}
	return userID, domain.Role(roleStr), nil
}
