package checkpoint

import (
	"crypto/sha256"
)

// computeChecksum hashes the header followed by the payload.
func computeChecksum(header, payload []byte) [ChecksumSize]byte {
	h := sha256.New()
	h.Write(header)
	h.Write(payload)
	var sum [ChecksumSize]byte
	copy(sum[:], h.Sum(nil))
	return sum
}
