package stream

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/binary"
	"fmt"

	"github.com/mirrornet/mirror/src/crypto"
	"github.com/mirrornet/mirror/src/crypto/keys"
)

// FileVersion is the envelope version this parser understands.
const FileVersion uint32 = 5

const (
	versionLength = 4
	headerLength  = versionLength + crypto.SHA384Size
)

// CorruptError reports a structurally corrupt stream file: a malformed
// envelope, an unsupported version, or a trailing hash that does not match the
// bytes it covers. It is treated by the downloader as a verification failure,
// the same as a signature mismatch.
type CorruptError struct {
	reason string
}

// NewCorruptError ...
func NewCorruptError(format string, args ...interface{}) CorruptError {
	return CorruptError{reason: fmt.Sprintf(format, args...)}
}

// Error implements the Error interface
func (e CorruptError) Error() string {
	return "corrupt stream file: " + e.reason
}

// IsCorrupt checks that an error is of type CorruptError.
func IsCorrupt(err error) bool {
	_, ok := err.(CorruptError)
	return ok
}

// File is the decoded form of a validated stream file.
type File struct {
	Version      uint32
	PrevHash     []byte //hash of the preceding file of the same stream type
	Hash         []byte //SHA384 of this file's raw content
	Transactions []*Transaction
}

// FileHash returns the content hash of a raw stream file. This is the value
// nodes sign, the value quorum groups form around, and the value the next file
// embeds as its prev-hash.
func FileHash(content []byte) []byte {
	return crypto.SHA384(content)
}

// ReadPrevHash peeks at the prev-hash embedded in a raw stream file without
// decoding the records. The downloader uses it for the hash-chain check before
// spending any parsing work on the file.
func ReadPrevHash(content []byte) ([]byte, error) {
	if len(content) < headerLength {
		return nil, NewCorruptError("%d bytes is too short for a header", len(content))
	}

	version := binary.BigEndian.Uint32(content[:versionLength])
	if version != FileVersion {
		return nil, NewCorruptError("unsupported version %d", version)
	}

	prevHash := make([]byte, crypto.SHA384Size)
	copy(prevHash, content[versionLength:headerLength])

	return prevHash, nil
}

// Parse decodes a raw stream file into its ordered transaction sequence. It
// verifies the envelope version and the trailing record hash; either failing
// is a CorruptError and the file must not be committed.
func Parse(content []byte) (*File, error) {
	if len(content) < headerLength+crypto.SHA384Size {
		return nil, NewCorruptError("%d bytes is too short for an envelope", len(content))
	}

	version := binary.BigEndian.Uint32(content[:versionLength])
	if version != FileVersion {
		return nil, NewCorruptError("unsupported version %d", version)
	}

	// The trailing hash covers every byte before it.
	hashed := content[:len(content)-crypto.SHA384Size]
	declared := content[len(content)-crypto.SHA384Size:]
	if !bytes.Equal(crypto.SHA384(hashed), declared) {
		return nil, NewCorruptError("trailing hash mismatch")
	}

	file := &File{
		Version:  version,
		PrevHash: append([]byte{}, content[versionLength:headerLength]...),
		Hash:     FileHash(content),
	}

	records := content[headerLength : len(content)-crypto.SHA384Size]
	for len(records) > 0 {
		if len(records) < 4 {
			return nil, NewCorruptError("truncated record length")
		}
		recLen := binary.BigEndian.Uint32(records[:4])
		records = records[4:]
		if uint32(len(records)) < recLen {
			return nil, NewCorruptError("truncated record: want %d bytes, have %d", recLen, len(records))
		}

		tx := new(Transaction)
		if err := tx.Unmarshal(records[:recLen]); err != nil {
			return nil, NewCorruptError("undecodable record: %v", err)
		}
		file.Transactions = append(file.Transactions, tx)

		records = records[recLen:]
	}

	return file, nil
}

// Compose builds the raw byte content of a stream file: version word,
// prev-hash, length-prefixed records, trailing hash. It is the write-side
// counterpart of Parse, used by source-node tooling and test fixtures.
func Compose(prevHash []byte, transactions []*Transaction) ([]byte, error) {
	if len(prevHash) != crypto.SHA384Size {
		return nil, fmt.Errorf("prev-hash must be %d bytes, not %d", crypto.SHA384Size, len(prevHash))
	}

	b := new(bytes.Buffer)

	version := make([]byte, versionLength)
	binary.BigEndian.PutUint32(version, FileVersion)
	b.Write(version)
	b.Write(prevHash)

	for _, tx := range transactions {
		raw, err := tx.Marshal()
		if err != nil {
			return nil, err
		}
		recLen := make([]byte, 4)
		binary.BigEndian.PutUint32(recLen, uint32(len(raw)))
		b.Write(recLen)
		b.Write(raw)
	}

	b.Write(crypto.SHA384(b.Bytes()))

	return b.Bytes(), nil
}

// ComposeSignature builds the content of a detached signature file: the
// content hash followed by the node's encoded signature over it.
func ComposeSignature(key *ecdsa.PrivateKey, content []byte) ([]byte, error) {
	hash := FileHash(content)

	r, s, err := keys.Sign(key, hash)
	if err != nil {
		return nil, err
	}

	b := new(bytes.Buffer)
	b.Write(hash)
	b.WriteString(keys.EncodeSignature(r, s))

	return b.Bytes(), nil
}

// ParseSignature splits a signature file into the content hash it claims and
// the encoded signature.
func ParseSignature(data []byte) (hash []byte, sig string, err error) {
	if len(data) <= crypto.SHA384Size {
		return nil, "", NewCorruptError("%d bytes is too short for a signature file", len(data))
	}

	hash = append([]byte{}, data[:crypto.SHA384Size]...)
	sig = string(data[crypto.SHA384Size:])

	return hash, sig, nil
}
