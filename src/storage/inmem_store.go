package storage

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/mirrornet/mirror/src/stream"
)

// ErrInjected is returned by an InmemStore for nodes configured to fail.
var ErrInjected = errors.New("storage: injected fetch failure")

// InmemStore is an in-memory ObjectStore for tests. Per-node failure and
// latency injection stand in for the unreachable and slow nodes a real round
// has to tolerate.
type InmemStore struct {
	mtx     sync.RWMutex
	blobs   map[string]map[stream.Type]map[string][]byte //node => type => name => content
	failing map[string]bool
	latency map[string]time.Duration
}

// NewInmemStore ...
func NewInmemStore() *InmemStore {
	return &InmemStore{
		blobs:   make(map[string]map[stream.Type]map[string][]byte),
		failing: make(map[string]bool),
		latency: make(map[string]time.Duration),
	}
}

// Put stores a blob for a node.
func (s *InmemStore) Put(nodeAccount string, streamType stream.Type, name string, content []byte) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.blobs[nodeAccount] == nil {
		s.blobs[nodeAccount] = make(map[stream.Type]map[string][]byte)
	}
	if s.blobs[nodeAccount][streamType] == nil {
		s.blobs[nodeAccount][streamType] = make(map[string][]byte)
	}
	s.blobs[nodeAccount][streamType][name] = content
}

// FailNode makes every subsequent Fetch from the node return ErrInjected.
func (s *InmemStore) FailNode(nodeAccount string) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.failing[nodeAccount] = true
}

// DelayNode makes every subsequent Fetch from the node block for d.
func (s *InmemStore) DelayNode(nodeAccount string, d time.Duration) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.latency[nodeAccount] = d
}

// ListFiles implements ObjectStore.
func (s *InmemStore) ListFiles(streamType stream.Type, afterName string) ([]string, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	seen := map[string]bool{}
	for _, byType := range s.blobs {
		for name := range byType[streamType] {
			if !stream.IsSigName(name) && name > afterName {
				seen[name] = true
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	return names, nil
}

// Fetch implements ObjectStore.
func (s *InmemStore) Fetch(nodeAccount string, streamType stream.Type, name string) ([]byte, error) {
	s.mtx.RLock()
	fail := s.failing[nodeAccount]
	delay := s.latency[nodeAccount]
	var content []byte
	var ok bool
	if byType, found := s.blobs[nodeAccount]; found {
		content, ok = byType[streamType][name]
	}
	s.mtx.RUnlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if fail {
		return nil, ErrInjected
	}
	if !ok {
		return nil, NewNotFoundErr(name)
	}

	return content, nil
}
