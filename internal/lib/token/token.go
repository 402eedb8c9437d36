// Package token выпускает и проверяет сервисные JWT-токены, которыми
// диалоговый слой бота авторизуется во внутреннем API движка.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issue выпускает HS256-токен для сервиса caller со сроком жизни ttl.
func Issue(secret, caller string, ttl time.Duration) (string, error) {
	const op = "token.Issue"

	claims := jwt.MapClaims{
		"sub": caller,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return signed, nil
}

// Validate проверяет подпись и срок жизни токена, возвращает имя сервиса.
func Validate(secret, tokenStr string) (string, error) {
	const op = "token.Validate"

	parsed, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return "", fmt.Errorf("%s: invalid token", op)
	}
	caller, err := claims.GetSubject()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return caller, nil
}
