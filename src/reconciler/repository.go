package reconciler

import (
	"github.com/mirrornet/mirror/src/stream"
)

// Entity is one row of the entity registry. An entity is created the first
// time any transaction references it and is never deleted, only updated.
// There is at most one row per (realm, num).
type Entity struct {
	Realm     int64
	Num       int64
	Type      stream.EntityType
	AutoRenew int64
	Proxy     string
}

// Account returns the entity's (realm, num) pair in canonical string form.
func (e *Entity) Account() string {
	return stream.AccountID{Realm: e.Realm, Num: e.Num}.String()
}

// UnitOfWork collects the effects of one stream file. Nothing becomes visible
// to readers or to later HasTransaction calls until Commit; Rollback discards
// everything. A UnitOfWork is used from a single goroutine.
type UnitOfWork interface {
	//HasTransaction says whether a transaction with this consensus timestamp
	//was already committed, by this unit of work or an earlier one.
	HasTransaction(consensusTime int64) (bool, error)

	SaveTransaction(tx *stream.Transaction) error

	//UpsertEntity inserts the entity if absent. If present, only creation
	//metadata (AutoRenew, Proxy) is filled in, and only when the incoming
	//entity carries any.
	UpsertEntity(entity *Entity) error

	SaveTransfers(consensusTime int64, transfers []stream.Transfer) error

	SaveNonFeeTransfers(consensusTime int64, transfers []stream.Transfer) error

	Commit() error

	Rollback() error
}

// Repository hands out units of work over the backing store.
type Repository interface {
	Begin() (UnitOfWork, error)
	Close() error
}
