// Package checkpoint persists the last-validated-file marker for each stream
// type, plus the optional operator-set bypass window for hash-chain
// mismatches.
//
// The checkpoint is read before each round and written strictly after the
// round's effects are committed, so it always names a file whose effects are
// durably persisted, not merely a file that was verified.
package checkpoint

import (
	"bytes"

	"github.com/mirrornet/mirror/src/stream"
	"github.com/ugorji/go/codec"
)

// Checkpoint is the durable marker of the last successfully ingested file of
// one stream type. BypassUntil, when non-zero, permits hash-chain mismatches
// for rounds whose timestamp is at or before it; it is an explicit operator
// override, never set automatically.
type Checkpoint struct {
	StreamType   stream.Type
	LastFileName string
	LastFileHash []byte
	BypassUntil  int64
}

// Marshal - canonical json encoding of the Checkpoint
func (c *Checkpoint) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(c); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal ...
func (c *Checkpoint) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	if err := dec.Decode(c); err != nil {
		return err
	}

	return nil
}

// Store is the durable key/value record behind checkpoints. There is a single
// writer per stream type because at most one round per type runs at a time.
type Store interface {
	// Get returns the checkpoint for a stream type, or a KeyNotFound StoreErr
	// when no round has ever committed for it.
	Get(streamType stream.Type) (*Checkpoint, error)

	// Set overwrites the checkpoint for the checkpoint's stream type.
	Set(checkpoint *Checkpoint) error

	Close() error
}
