package auth

import (
	"crypto/sha256"

	"github.com/mr-tron/base58"
)

// Fingerprint returns a short Base58 SHA256 digest of a token, safe to log or
// display in place of the token itself. Empty tokens have an empty fingerprint.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}

	hash := sha256.Sum256([]byte(token))
	fp := base58.Encode(hash[:])
	if len(fp) > 12 {
		fp = fp[:12]
	}

	return fp
}
