// Package validation содержит проверки пользовательского ввода.
package validation

import (
	"errors"
	"strconv"
	"strings"
)

// Ошибки валидации — ожидаемые условия, возвращаются пользователю как обычные
// сообщения и не логируются как исключительные.
var (
	ErrInvalidPhoneFormat = errors.New("invalid phone number format")
	ErrProofTooSmall      = errors.New("payment proof image is too small")
	ErrProofTooLarge      = errors.New("payment proof image is too large")
	ErrNotANumber         = errors.New("value must be an integer")
	ErrRatingOutOfRange   = errors.New("rating must be between 1 and 5")
)

const (
	phonePrefix = "93"
	phoneLength = 11
)

var digitTranslations = map[rune]rune{
	// персидские цифры
	'۰': '0', '۱': '1', '۲': '2', '۳': '3', '۴': '4',
	'۵': '5', '۶': '6', '۷': '7', '۸': '8', '۹': '9',
	// арабские цифры
	'٠': '0', '١': '1', '٢': '2', '٣': '3', '٤': '4',
	'٥': '5', '٦': '6', '٧': '7', '٨': '8', '٩': '9',
}

// NormalizeDigits заменяет локализованные глифы цифр на ASCII.
// Применяется до любого числового разбора ввода.
func NormalizeDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if ascii, ok := digitTranslations[r]; ok {
			return ascii
		}
		return r
	}, s)
}

// ValidatePhone проверяет телефонный номер: префикс страны, фиксированная
// длина, только цифры. Вход нормализуется перед проверкой.
func ValidatePhone(raw string) (string, error) {
	phone := NormalizeDigits(strings.TrimSpace(raw))
	if len(phone) != phoneLength || !strings.HasPrefix(phone, phonePrefix) {
		return "", ErrInvalidPhoneFormat
	}
	for _, r := range phone {
		if r < '0' || r > '9' {
			return "", ErrInvalidPhoneFormat
		}
	}
	return phone, nil
}

// ValidateProofSize проверяет размер изображения рассчётного чека в байтах.
// Слишком маленькое изображение считается нечитаемым, слишком большое — отклоняется.
func ValidateProofSize(size, minBytes, maxBytes int64) error {
	if size < minBytes {
		return ErrProofTooSmall
	}
	if size > maxBytes {
		return ErrProofTooLarge
	}
	return nil
}

// ParseAmount разбирает целое число из административного ввода
// с нормализацией цифр.
func ParseAmount(raw string) (int64, error) {
	v, err := strconv.ParseInt(NormalizeDigits(strings.TrimSpace(raw)), 10, 64)
	if err != nil {
		return 0, ErrNotANumber
	}
	return v, nil
}

// ParseRating разбирает оценку 1-5 из ввода пользователя.
func ParseRating(raw string) (int, error) {
	v, err := ParseAmount(raw)
	if err != nil {
		return 0, err
	}
	if v < 1 || v > 5 {
		return 0, ErrRatingOutOfRange
	}
	return int(v), nil
}
