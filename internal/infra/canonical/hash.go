package canonical

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashSize is the digest length of the content hash, in bytes.
const HashSize = sha256.Size

// Hash returns the SHA-256 digest of data.
func Hash(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// HashHex returns the SHA-256 digest of data as 64 lowercase hex
// characters, the form anchored on the ledger and stored in indexes.
func HashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashValue canonicalizes v and hashes the canonical bytes.
func HashValue(v any) (string, error) {
	b, err := Bytes(v)
	if err != nil {
		return "", err
	}
	return HashHex(b), nil
}
