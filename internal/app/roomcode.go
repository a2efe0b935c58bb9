package app

import (
	"crypto/rand"
	"strings"

	"quiz-battle-service/internal/domain"
)

const (
	roomCodeChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	roomCodeLength = 6
)

// GenerateRoomCode returns a random 6-character uppercase alphanumeric code.
// Uniqueness among waiting battles is enforced by the store.
func GenerateRoomCode() (string, error) {
	b := make([]byte, roomCodeLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = roomCodeChars[int(b[i])%len(roomCodeChars)]
	}
	return string(b), nil
}

// NormalizeRoomCode trims and uppercases a player-entered code and checks its shape.
func NormalizeRoomCode(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) != roomCodeLength {
		return "", domain.ErrInvalidRoomCode
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(roomCodeChars, code[i]) < 0 {
			return "", domain.ErrInvalidRoomCode
		}
	}
	return code, nil
}
