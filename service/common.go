package service

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// AuthSession tracks one in-flight authorize redirect for a pool client. The
// state token round-trips through the platform's consent screen and is
// single use.
type AuthSession struct {
	Token     string
	ClientNum int
	CreatedAt time.Time
	Used      bool
}

// randomHex returns n random bytes hex encoded. Used for OAuth state tokens
// and upload correlation tags.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
