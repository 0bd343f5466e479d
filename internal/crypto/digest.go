package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

const digestPrefix = "sha256:"

func DigestBytes(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

func DigestHex(data []byte) string {
	return hex.EncodeToString(DigestBytes(data))
}

// DigestWithPrefix is the "sha256:<hex>" form used for every ID and hash
// stored in the ledger.
func DigestWithPrefix(data []byte) string {
	return digestPrefix + DigestHex(data)
}

// CanonicalDigest canonicalizes v and returns its sha256: digest together with
// the canonical bytes. Record IDs are derived this way.
func CanonicalDigest(v any) (string, []byte, error) {
	canonical, err := Canonicalize(v)
	if err != nil {
		return "", nil, err
	}
	return DigestWithPrefix(canonical), canonical, nil
}
