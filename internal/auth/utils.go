package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/spf13/cast"
)

// generateSessionKey returns a 40 character hex session identifier.
func generateSessionKey() string {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Errorf("failed to generate random bytes: %w", err))
	}
	return hex.EncodeToString(b)
}

func strconvUint(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}

func parseUint(s string) (uint, error) {
	return cast.ToUintE(s)
}
