package checkpoint

import (
	"sync"

	cm "github.com/mirrornet/mirror/src/common"
	"github.com/mirrornet/mirror/src/stream"
)

// InmemStore is a checkpoint Store held in memory. It is used in tests and
// when the mirror runs without persistence, in which case ingestion restarts
// from the beginning of the stream on every boot.
type InmemStore struct {
	mtx         sync.RWMutex
	checkpoints map[stream.Type]*Checkpoint
}

// NewInmemStore ...
func NewInmemStore() *InmemStore {
	return &InmemStore{
		checkpoints: make(map[stream.Type]*Checkpoint),
	}
}

// Get implements the Store interface.
func (s *InmemStore) Get(streamType stream.Type) (*Checkpoint, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	checkpoint, ok := s.checkpoints[streamType]
	if !ok {
		return nil, cm.NewStoreErr("Checkpoint", cm.KeyNotFound, streamType.String())
	}

	return checkpoint, nil
}

// Set implements the Store interface.
func (s *InmemStore) Set(checkpoint *Checkpoint) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.checkpoints[checkpoint.StreamType] = checkpoint

	return nil
}

// Close implements the Store interface.
func (s *InmemStore) Close() error {
	return nil
}
