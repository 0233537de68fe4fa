package crypto

import (
	"crypto/sha256"
	"crypto/sha512"
)

// SHA384Size is the size, in bytes, of a SHA384 digest. Stream-file content
// hashes, prev-hashes, and record hashes all use SHA384.
const SHA384Size = sha512.Size384

// SHA256 returns the SHA256 hash of the data.
func SHA256(data []byte) []byte {
	hasher := sha256.New()
	hasher.Write(data)
	hash := hasher.Sum(nil)
	return hash
}

// SimpleHashFromTwoHashes returns the SHA256 hash of the concatenation of left
// and right data.
func SimpleHashFromTwoHashes(left []byte, right []byte) []byte {
	var hasher = sha256.New()
	hasher.Write(left)
	hasher.Write(right)
	return hasher.Sum(nil)
}

// SHA384 returns the SHA384 hash of the data.
func SHA384(data []byte) []byte {
	hasher := sha512.New384()
	hasher.Write(data)
	hash := hasher.Sum(nil)
	return hash
}
