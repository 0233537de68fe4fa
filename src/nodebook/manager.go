package nodebook

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrZeroStake is returned when an update would produce a book with zero total
// stake. Quorum math divides by total stake, so such an update is rejected and
// the previous book remains active.
var ErrZeroStake = errors.New("nodebook: update with zero total stake")

type bookRecord struct {
	effective int64 //consensus time at which the book became active
	book      *NodeBook
}

// Manager owns the node book. It holds the genesis book plus every book
// produced by an update transaction, each tagged with the consensus time at
// which it became effective, so that BookAt can answer for any timestamp the
// reconciler might reprocess. Reads take a snapshot; they are safe while an
// update is in flight.
type Manager struct {
	mtx     sync.RWMutex
	history []bookRecord //ascending by effective time
	logger  *logrus.Entry
}

// NewManager creates a Manager seeded with the genesis NodeBook, effective
// from the beginning of time.
func NewManager(genesis *NodeBook, logger *logrus.Entry) *Manager {
	return &Manager{
		history: []bookRecord{{effective: 0, book: genesis}},
		logger:  logger,
	}
}

// Current returns the latest NodeBook.
func (m *Manager) Current() *NodeBook {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	return m.history[len(m.history)-1].book
}

// BookAt returns the NodeBook that was active at the given consensus time.
func (m *Manager) BookAt(consensusTime int64) *NodeBook {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	res := m.history[0].book
	for _, rec := range m.history {
		if rec.effective > consensusTime {
			break
		}
		res = rec.book
	}
	return res
}

// ApplyUpdate replaces the active book with the node list carried by an update
// transaction, effective from the given consensus time. An update whose total
// stake is zero is rejected with ErrZeroStake and the previous book remains
// active; this blocks all future quorum decisions, so it is surfaced loudly
// rather than silently ignored.
func (m *Manager) ApplyUpdate(body *UpdateBody, consensusTime int64) (*NodeBook, error) {
	book := NewNodeBook(body.Nodes)

	if book.TotalStake() == 0 {
		m.logger.WithFields(logrus.Fields{
			"consensus_time": consensusTime,
			"nodes":          book.Len(),
		}).Error("Rejecting node-book update with zero total stake")
		return nil, ErrZeroStake
	}

	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.history = append(m.history, bookRecord{effective: consensusTime, book: book})

	m.logger.WithFields(logrus.Fields{
		"consensus_time": consensusTime,
		"nodes":          book.Len(),
		"total_stake":    book.TotalStake(),
	}).Info("Applied node-book update")

	return book, nil
}

// ApplyUpdateBytes unmarshals an UpdateBody and applies it.
func (m *Manager) ApplyUpdateBytes(data []byte, consensusTime int64) (*NodeBook, error) {
	body := new(UpdateBody)
	if err := body.Unmarshal(data); err != nil {
		return nil, err
	}
	return m.ApplyUpdate(body, consensusTime)
}
