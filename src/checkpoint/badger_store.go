package checkpoint

import (
	"github.com/dgraph-io/badger"
	cm "github.com/mirrornet/mirror/src/common"
	"github.com/mirrornet/mirror/src/stream"
)

const checkpointPrefix = "checkpoint"

// BadgerStore is a checkpoint Store backed by a Badger database. A crash
// between commit and checkpoint write is safe: the round is re-fetched and
// re-parsed on restart, and duplicate-timestamp skipping makes re-application
// idempotent.
type BadgerStore struct {
	db   *badger.DB
	path string
}

// NewBadgerStore opens (or creates) a Badger database at path.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.SyncWrites = true

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	store := &BadgerStore{
		db:   handle,
		path: path,
	}

	return store, nil
}

func checkpointKey(streamType stream.Type) []byte {
	return []byte(checkpointPrefix + ":" + streamType.String())
}

// Get implements the Store interface.
func (s *BadgerStore) Get(streamType stream.Type) (*Checkpoint, error) {
	key := checkpointKey(streamType)

	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, cm.NewStoreErr("Checkpoint", cm.KeyNotFound, string(key))
	}
	if err != nil {
		return nil, err
	}

	checkpoint := new(Checkpoint)
	if err := checkpoint.Unmarshal(raw); err != nil {
		return nil, err
	}

	return checkpoint, nil
}

// Set implements the Store interface.
func (s *BadgerStore) Set(checkpoint *Checkpoint) error {
	raw, err := checkpoint.Marshal()
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(checkpointKey(checkpoint.StreamType), raw)
	})
}

// Close implements the Store interface.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// Path returns the directory containing the database files.
func (s *BadgerStore) Path() string {
	return s.path
}
