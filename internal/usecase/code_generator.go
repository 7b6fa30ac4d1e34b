package usecase

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	"strings"
)

// generateActivationCode creates a secure random activation code.
// Format: 16 uppercase hex characters (8 bytes of entropy).
func generateActivationCode() (string, error) {
	buf := make([]byte, 8)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}
