package common

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sha256Hex digests a secret into lowercase hex. Refresh tokens, password
// reset tokens, OTP codes and idempotency keys are all stored under this
// digest so a leaked Redis or sessions dump exposes nothing replayable.
func Sha256Hex(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
