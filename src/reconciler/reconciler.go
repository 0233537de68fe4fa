package reconciler

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/mirrornet/mirror/src/nodebook"
	"github.com/mirrornet/mirror/src/stream"
)

// Config groups the persistence knobs of the Reconciler.
type Config struct {
	//PersistCryptoTransfers controls writing the itemized transfer rows.
	PersistCryptoTransfers bool

	//PersistNonFeeTransfers controls writing the derived non-fee rows.
	PersistNonFeeTransfers bool

	//NonFeeAggregated selects the two-line net form of non-fee rows instead
	//of the per-line declared form.
	NonFeeAggregated bool

	//TreasuryAccount receives network and service fees.
	TreasuryAccount string
}

// DefaultConfig ...
func DefaultConfig() *Config {
	return &Config{
		PersistCryptoTransfers: true,
		PersistNonFeeTransfers: true,
		TreasuryAccount:        "0.98",
	}
}

// Reconciler turns a validated stream file into committed transaction, entity
// and transfer rows. All rows of one file land in a single unit of work, so a
// crash mid-file leaves no partial effects; the file is then re-fetched from
// the checkpoint and replayed, with duplicate consensus timestamps skipped.
type Reconciler struct {
	repo   Repository
	books  *nodebook.Manager
	conf   *Config
	logger *logrus.Entry
}

// NewReconciler ...
func NewReconciler(
	repo Repository,
	books *nodebook.Manager,
	conf *Config,
	logger *logrus.Entry) *Reconciler {

	return &Reconciler{
		repo:   repo,
		books:  books,
		conf:   conf,
		logger: logger,
	}
}

// ProcessFile walks the file's transactions in consensus order and commits
// their effects atomically. It implements CommitFunc for the downloader.
func (r *Reconciler) ProcessFile(file *stream.File) error {
	uow, err := r.repo.Begin()
	if err != nil {
		return err
	}

	committed := 0
	skipped := 0

	for _, tx := range file.Transactions {
		if tx.Type == stream.TxNodeBookUpdate && tx.Successful() {
			//hand the new book to the manager before reconciling the
			//transaction itself, so later files in this round resolve against
			//the updated book
			if _, err := r.books.ApplyUpdateBytes(tx.UpdateBody, tx.ConsensusTime); err != nil {
				r.logger.WithFields(logrus.Fields{
					"consensus_time": tx.ConsensusTime,
					"error":          err,
				}).Error("Rejected node book update")
			}
		}

		dup, err := uow.HasTransaction(tx.ConsensusTime)
		if err != nil {
			uow.Rollback()
			return err
		}
		if dup {
			skipped++
			continue
		}

		if err := r.reconcile(uow, tx); err != nil {
			uow.Rollback()
			return err
		}
		committed++
	}

	if err := uow.Commit(); err != nil {
		return err
	}

	r.logger.WithFields(logrus.Fields{
		"transactions": committed,
		"skipped":      skipped,
	}).Debug("Reconciled stream file")

	return nil
}

func (r *Reconciler) reconcile(uow UnitOfWork, tx *stream.Transaction) error {
	if err := uow.SaveTransaction(tx); err != nil {
		return err
	}

	for _, entity := range r.entities(tx) {
		if err := uow.UpsertEntity(entity); err != nil {
			return err
		}
	}

	if r.conf.PersistCryptoTransfers && len(tx.Transfers) > 0 {
		if err := uow.SaveTransfers(tx.ConsensusTime, tx.Transfers); err != nil {
			return err
		}
	}

	if r.conf.PersistNonFeeTransfers && tx.Successful() {
		if rows := r.nonFeeTransfers(tx); len(rows) > 0 {
			if err := uow.SaveNonFeeTransfers(tx.ConsensusTime, rows); err != nil {
				return err
			}
		}
	}

	return nil
}

// entities collects every entity the transaction references, in a
// deterministic order: payer, node, created entity, then transfer
// participants in list order.
func (r *Reconciler) entities(tx *stream.Transaction) []*Entity {
	res := []*Entity{}
	seen := map[string]bool{}

	add := func(entity *Entity) {
		key := entity.Account()
		if seen[key] {
			return
		}
		seen[key] = true
		res = append(res, entity)
	}

	addAccount := func(account string) {
		id, err := stream.ParseAccountID(account)
		if err != nil {
			return
		}
		add(&Entity{Realm: id.Realm, Num: id.Num, Type: stream.EntityAccount})
	}

	addAccount(tx.Payer)
	addAccount(tx.NodeAccount)

	if tx.Successful() && tx.Created != nil {
		add(&Entity{
			Realm:     tx.Created.Realm,
			Num:       tx.Created.Num,
			Type:      tx.Created.Type,
			AutoRenew: tx.AutoRenew,
			Proxy:     tx.Proxy,
		})
	}

	for _, t := range tx.Transfers {
		addAccount(t.Account)
	}

	return res
}

// nonFeeTransfers derives the value-movement rows of a transaction. The
// declared body list is used when the record carries it; otherwise the fee
// lines are stripped from the itemized list. Both paths describe the same
// movements.
func (r *Reconciler) nonFeeTransfers(tx *stream.Transaction) []stream.Transfer {
	value := tx.Declared
	if len(value) == 0 {
		value = stripFees(tx, r.conf.TreasuryAccount)
	}
	if r.conf.NonFeeAggregated {
		return aggregate(value)
	}
	return value
}

// stripFees removes the fee suffix from the itemized transfer list. Fee lines
// are appended after the declared value lines: credits to the node account
// and the treasury, with matching payer debits, together worth the declared
// fee on each side.
func stripFees(tx *stream.Transaction, treasury string) []stream.Transfer {
	if tx.Fee == 0 {
		return tx.Transfers
	}

	var payerDebits, feeCredits int64

	i := len(tx.Transfers)
	for i > 0 && (payerDebits < tx.Fee || feeCredits < tx.Fee) {
		line := tx.Transfers[i-1]
		switch {
		case line.Amount > 0 && (line.Account == tx.NodeAccount || line.Account == treasury):
			feeCredits += line.Amount
		case line.Amount < 0 && line.Account == tx.Payer:
			payerDebits += -line.Amount
		default:
			return tx.Transfers[:i]
		}
		i--
	}

	return tx.Transfers[:i]
}

// aggregate reduces transfer lines to one net line per account, zero nets
// dropped, ordered by (realm, num).
func aggregate(transfers []stream.Transfer) []stream.Transfer {
	nets := map[string]int64{}
	for _, t := range transfers {
		nets[t.Account] += t.Amount
	}

	res := []stream.Transfer{}
	for account, amount := range nets {
		if amount == 0 {
			continue
		}
		res = append(res, stream.Transfer{Account: account, Amount: amount})
	}

	sort.Slice(res, func(i, j int) bool {
		a, _ := stream.ParseAccountID(res[i].Account)
		b, _ := stream.ParseAccountID(res[j].Account)
		if a.Realm != b.Realm {
			return a.Realm < b.Realm
		}
		return a.Num < b.Num
	})

	return res
}
