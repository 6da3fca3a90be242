// Package accesscode генерирует идентификаторы абонемента: шестизначный
// код доступа для ручного ввода и непрозрачный QR-токен для сканера.
// Уникальность кода среди существующих абонементов обеспечивает
// вызывающая сторона повтором при коллизии.
package accesscode

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// Границы диапазона кода доступа: всегда ровно шесть цифр.
const (
	codeMin = 100000
	codeMax = 999999
)

// NewCode возвращает равномерно случайный шестизначный код доступа
// в диапазоне [100000, 999999].
func NewCode() (string, error) {
	const op = "accesscode.NewCode"
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Sprintf("%06d", codeMin+n.Int64()), nil
}

// NewToken возвращает непрозрачный токен для QR-кода. Токен
// функционально эквивалентен коду доступа при автоматической проверке.
func NewToken() string {
	return uuid.NewString()
}
