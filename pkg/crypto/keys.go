package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// VerifyCost is the bcrypt cost used for key verification hashes.
	// Cost 10 keeps verification around 100ms, which only matters on the
	// legacy fallback path; the lookup-hash fast path skips bcrypt entirely.
	VerifyCost = 10

	// KeyPrefixLen is the number of leading characters stored for display.
	KeyPrefixLen = 12

	keySecretBytes = 32
)

// dummyHash is compared against when a presented key matches no record,
// so unknown keys pay the same bcrypt cost as known ones.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

var randomRead = rand.Read

// GenerateVirtualKey mints a new "sk-" virtual key.
func GenerateVirtualKey() (string, error) {
	buf := make([]byte, keySecretBytes)
	if _, err := randomRead(buf); err != nil {
		return "", fmt.Errorf("failed to generate key material: %w", err)
	}
	return "sk-" + base64.StdEncoding.EncodeToString(buf), nil
}

// HashKey produces the slow verification hash of a virtual key.
func HashKey(key string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), VerifyCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash key: %w", err)
	}
	return string(hashed), nil
}

// VerifyKey checks a presented key against a verification hash in
// constant time.
func VerifyKey(key, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}

// VerifyDummy burns a bcrypt comparison without authenticating anything.
func VerifyDummy(key string) {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(key))
}

// LookupHash computes the fast SHA-256 digest used for indexed key
// retrieval. It is not sufficient to authenticate on its own.
func LookupHash(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// KeyPrefix returns the display prefix of a key.
func KeyPrefix(key string) string {
	if len(key) >= KeyPrefixLen {
		return key[:KeyPrefixLen]
	}
	return key
}

// ValidateKeyFormat rejects credentials that cannot be virtual keys.
func ValidateKeyFormat(key string) error {
	if len(key) < 10 || key[:3] != "sk-" {
		return fmt.Errorf("virtual keys must start with 'sk-'")
	}
	return nil
}
