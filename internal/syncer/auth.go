package syncer

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenExpired возвращается, когда bearer-токен уже истек и серия
// отправок не начиналась.
var ErrTokenExpired = errors.New("auth token expired")

// TokenExpiresAt извлекает срок жизни из JWT без проверки подписи:
// подпись проверяет бэкенд, клиенту нужна только дата, чтобы не начинать
// заведомо обреченную серию отправок. Токен без exp считается бессрочным.
func TokenExpiresAt(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("failed to parse token: %w", err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read exp claim: %w", err)
	}
	if exp == nil {
		return time.Time{}, nil
	}
	return exp.Time, nil
}

// checkAuthToken проверяет, не истек ли настроенный bearer-токен.
// Отсутствие токена или нечитаемый токен не блокируют отправку:
// последнее слово за бэкендом.
func (c *Client) checkAuthToken() error {
	if c.authToken == "" {
		return nil
	}

	exp, err := TokenExpiresAt(c.authToken)
	if err != nil || exp.IsZero() {
		return nil
	}
	if time.Now().After(exp) {
		return fmt.Errorf("%w: expired at %s", ErrTokenExpired, exp.Format(time.RFC3339))
	}
	return nil
}
