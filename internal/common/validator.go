package common

import (
	"fmt"
	"strings"
)

// DefaultCountryCode is prepended to national numbers that arrive without
// a country prefix. The booking frontend submits Brazilian numbers in
// local format (area code + number), so 55 is the default.
const DefaultCountryCode = "55"

// MinPhoneDigits is the minimum number of digits a recipient phone number
// must contain after stripping formatting characters.
const MinPhoneDigits = 10

// StripNonDigits removes every non-numeric character from s.
func StripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// IsAllDigits checks if a string contains only digits (0-9)
// This is optimized for speed by checking each byte directly
func IsAllDigits(s string) bool {
	if len(s) == 0 {
		return false
	}

	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}

	return true
}

// NormalizePhone strips formatting from a phone number and ensures it
// carries a country code. Numbers shorter than MinPhoneDigits after
// stripping are rejected. A 10 or 11 digit number is treated as a
// national number and gets countryCode prepended; anything longer is
// assumed to already be international.
func NormalizePhone(raw string, countryCode string) (string, error) {
	digits := StripNonDigits(raw)

	if len(digits) < MinPhoneDigits {
		return "", fmt.Errorf("phone number must have at least %d digits, got %d", MinPhoneDigits, len(digits))
	}

	// A malformed country code from configuration would silently corrupt
	// every outbound number, so fall back to the default instead.
	if !IsAllDigits(countryCode) {
		countryCode = DefaultCountryCode
	}

	// National numbers are 10 digits (landline) or 11 digits (mobile).
	if len(digits) <= 11 && !strings.HasPrefix(digits, countryCode) {
		digits = countryCode + digits
	}

	return digits, nil
}
