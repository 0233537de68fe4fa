package reconciler

import (
	"fmt"
	"sync"

	"github.com/mirrornet/mirror/src/stream"
)

// InmemRepository implements Repository with plain maps. It is used for
// testing and for running without a database.
type InmemRepository struct {
	sync.Mutex
	transactions    map[int64]*stream.Transaction
	entities        map[string]*Entity
	transfers       map[int64][]stream.Transfer
	nonFeeTransfers map[int64][]stream.Transfer

	//FailNextCommit makes the next Commit fail, for crash testing
	FailNextCommit bool
}

// NewInmemRepository ...
func NewInmemRepository() *InmemRepository {
	return &InmemRepository{
		transactions:    make(map[int64]*stream.Transaction),
		entities:        make(map[string]*Entity),
		transfers:       make(map[int64][]stream.Transfer),
		nonFeeTransfers: make(map[int64][]stream.Transfer),
	}
}

// Begin implements the Repository interface
func (r *InmemRepository) Begin() (UnitOfWork, error) {
	return &inmemUOW{
		repo:            r,
		transactions:    make(map[int64]*stream.Transaction),
		entities:        []*Entity{},
		transfers:       make(map[int64][]stream.Transfer),
		nonFeeTransfers: make(map[int64][]stream.Transfer),
	}, nil
}

// Close implements the Repository interface
func (r *InmemRepository) Close() error {
	return nil
}

// Transaction returns a committed transaction by consensus timestamp.
func (r *InmemRepository) Transaction(consensusTime int64) (*stream.Transaction, bool) {
	r.Lock()
	defer r.Unlock()
	tx, ok := r.transactions[consensusTime]
	return tx, ok
}

// TransactionCount ...
func (r *InmemRepository) TransactionCount() int {
	r.Lock()
	defer r.Unlock()
	return len(r.transactions)
}

// Entity returns a committed entity by account string.
func (r *InmemRepository) Entity(account string) (*Entity, bool) {
	r.Lock()
	defer r.Unlock()
	e, ok := r.entities[account]
	return e, ok
}

// EntityCount ...
func (r *InmemRepository) EntityCount() int {
	r.Lock()
	defer r.Unlock()
	return len(r.entities)
}

// Transfers returns committed itemized transfer rows for a transaction.
func (r *InmemRepository) Transfers(consensusTime int64) []stream.Transfer {
	r.Lock()
	defer r.Unlock()
	return r.transfers[consensusTime]
}

// NonFeeTransfers returns committed non-fee transfer rows for a transaction.
func (r *InmemRepository) NonFeeTransfers(consensusTime int64) []stream.Transfer {
	r.Lock()
	defer r.Unlock()
	return r.nonFeeTransfers[consensusTime]
}

type inmemUOW struct {
	repo            *InmemRepository
	transactions    map[int64]*stream.Transaction
	order           []int64
	entities        []*Entity
	transfers       map[int64][]stream.Transfer
	nonFeeTransfers map[int64][]stream.Transfer
	done            bool
}

func (u *inmemUOW) HasTransaction(consensusTime int64) (bool, error) {
	if _, ok := u.transactions[consensusTime]; ok {
		return true, nil
	}
	u.repo.Lock()
	defer u.repo.Unlock()
	_, ok := u.repo.transactions[consensusTime]
	return ok, nil
}

func (u *inmemUOW) SaveTransaction(tx *stream.Transaction) error {
	u.transactions[tx.ConsensusTime] = tx
	u.order = append(u.order, tx.ConsensusTime)
	return nil
}

func (u *inmemUOW) UpsertEntity(entity *Entity) error {
	u.entities = append(u.entities, entity)
	return nil
}

func (u *inmemUOW) SaveTransfers(consensusTime int64, transfers []stream.Transfer) error {
	u.transfers[consensusTime] = transfers
	return nil
}

func (u *inmemUOW) SaveNonFeeTransfers(consensusTime int64, transfers []stream.Transfer) error {
	u.nonFeeTransfers[consensusTime] = transfers
	return nil
}

func (u *inmemUOW) Commit() error {
	if u.done {
		return fmt.Errorf("unit of work already finished")
	}
	u.done = true

	u.repo.Lock()
	defer u.repo.Unlock()

	if u.repo.FailNextCommit {
		u.repo.FailNextCommit = false
		return fmt.Errorf("commit failed")
	}

	for _, ts := range u.order {
		u.repo.transactions[ts] = u.transactions[ts]
	}
	for _, e := range u.entities {
		upsertEntity(u.repo.entities, e)
	}
	for ts, rows := range u.transfers {
		u.repo.transfers[ts] = rows
	}
	for ts, rows := range u.nonFeeTransfers {
		u.repo.nonFeeTransfers[ts] = rows
	}

	return nil
}

func (u *inmemUOW) Rollback() error {
	u.done = true
	return nil
}

func upsertEntity(registry map[string]*Entity, entity *Entity) {
	key := entity.Account()
	existing, ok := registry[key]
	if !ok {
		cp := *entity
		registry[key] = &cp
		return
	}
	if entity.AutoRenew != 0 {
		existing.AutoRenew = entity.AutoRenew
	}
	if entity.Proxy != "" {
		existing.Proxy = entity.Proxy
	}
}
