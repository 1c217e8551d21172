package refbackend

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// contentHash is the hex-encoded keccak256 of b, the same hash family the
// project uses for assembly content hashing.
func contentHash(b []byte) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(b)
	return hex.EncodeToString(h.Sum(nil))
}
