/*
Package randx provides functions for generating cryptographically secure random identifiers.

It is primarily used to generate the short numeric room codes players share with each
other, and to validate identifier shapes received from clients.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	// DigitChars defines the character set used for numeric room codes.
	DigitChars = "0123456789"

	// RoomCodeLength is the fixed length of the human-shareable room code.
	RoomCodeLength = 5

	// Base62Chars defines the character set accepted in client-generated
	// connection instance identifiers.
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-_"

	// ConnInstanceMinLength and ConnInstanceMaxLength bound the accepted length of
	// connection instance identifiers.
	ConnInstanceMinLength = 8
	ConnInstanceMaxLength = 64
)

// RoomCode generates a numeric room code using a cryptographically secure random
// number generator (crypto/rand). The first digit is never zero so codes always
// read as 5-digit numbers.
func RoomCode() (string, error) {
	result := make([]byte, RoomCodeLength)

	for i := 0; i < RoomCodeLength; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(DigitChars))))
		if err != nil {
			return "", fmt.Errorf("failed to generate random digit for room code: %w", err)
		}

		result[i] = DigitChars[num.Int64()]
	}

	if result[0] == '0' {
		result[0] = '1' + byte(int(result[1])%9)
	}

	return string(result), nil
}

// IsValidRoomCode checks if the given string is a well-formed room code:
// exactly RoomCodeLength digits.
func IsValidRoomCode(code string) bool {
	if len(code) != RoomCodeLength {
		return false
	}

	for _, char := range code {
		if char < '0' || char > '9' {
			return false
		}
	}

	return true
}

// IsValidConnInstanceID checks whether a client-supplied connection instance
// identifier has an acceptable shape. The value itself is opaque; only length
// and character set are constrained.
func IsValidConnInstanceID(id string) bool {
	if len(id) < ConnInstanceMinLength || len(id) > ConnInstanceMaxLength {
		return false
	}

	for _, char := range id {
		if !strings.ContainsRune(Base62Chars, char) {
			return false
		}
	}

	return true
}
