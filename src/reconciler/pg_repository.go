package reconciler

import (
	"database/sql"

	//postgres driver
	_ "github.com/lib/pq"

	"github.com/mirrornet/mirror/src/stream"
)

var pgSchema = []string{
	`CREATE TABLE IF NOT EXISTS entities (
		realm       BIGINT NOT NULL,
		num         BIGINT NOT NULL,
		entity_type SMALLINT NOT NULL,
		auto_renew  BIGINT NOT NULL DEFAULT 0,
		proxy       TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (realm, num)
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		consensus_time BIGINT PRIMARY KEY,
		tx_type        SMALLINT NOT NULL,
		payer          TEXT NOT NULL,
		node_account   TEXT NOT NULL,
		memo           TEXT NOT NULL DEFAULT '',
		fee            BIGINT NOT NULL DEFAULT 0,
		result         INT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS crypto_transfers (
		consensus_time BIGINT NOT NULL REFERENCES transactions (consensus_time),
		account        TEXT NOT NULL,
		amount         BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS non_fee_transfers (
		consensus_time BIGINT NOT NULL REFERENCES transactions (consensus_time),
		account        TEXT NOT NULL,
		amount         BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS crypto_transfers_account
		ON crypto_transfers (account, consensus_time)`,
	`CREATE INDEX IF NOT EXISTS non_fee_transfers_account
		ON non_fee_transfers (account, consensus_time)`,
}

// PGRepository implements Repository over postgres. Each unit of work maps to
// one sql transaction, so a stream file's rows land atomically.
type PGRepository struct {
	db *sql.DB
}

// NewPGRepository opens the database and creates missing tables.
func NewPGRepository(dsn string) (*PGRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	for _, stmt := range pgSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &PGRepository{db: db}, nil
}

// Begin implements the Repository interface
func (r *PGRepository) Begin() (UnitOfWork, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, err
	}
	return &pgUOW{tx: tx}, nil
}

// Close implements the Repository interface
func (r *PGRepository) Close() error {
	return r.db.Close()
}

type pgUOW struct {
	tx *sql.Tx
}

func (u *pgUOW) HasTransaction(consensusTime int64) (bool, error) {
	var one int
	err := u.tx.QueryRow(
		`SELECT 1 FROM transactions WHERE consensus_time = $1`,
		consensusTime,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (u *pgUOW) SaveTransaction(tx *stream.Transaction) error {
	_, err := u.tx.Exec(
		`INSERT INTO transactions
			(consensus_time, tx_type, payer, node_account, memo, fee, result)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		tx.ConsensusTime,
		tx.Type,
		tx.Payer,
		tx.NodeAccount,
		tx.Memo,
		tx.Fee,
		tx.Result,
	)
	return err
}

func (u *pgUOW) UpsertEntity(entity *Entity) error {
	_, err := u.tx.Exec(
		`INSERT INTO entities (realm, num, entity_type, auto_renew, proxy)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (realm, num) DO UPDATE SET
			auto_renew = CASE WHEN EXCLUDED.auto_renew <> 0
				THEN EXCLUDED.auto_renew ELSE entities.auto_renew END,
			proxy = CASE WHEN EXCLUDED.proxy <> ''
				THEN EXCLUDED.proxy ELSE entities.proxy END`,
		entity.Realm,
		entity.Num,
		entity.Type,
		entity.AutoRenew,
		entity.Proxy,
	)
	return err
}

func (u *pgUOW) SaveTransfers(consensusTime int64, transfers []stream.Transfer) error {
	return u.insertTransfers("crypto_transfers", consensusTime, transfers)
}

func (u *pgUOW) SaveNonFeeTransfers(consensusTime int64, transfers []stream.Transfer) error {
	return u.insertTransfers("non_fee_transfers", consensusTime, transfers)
}

func (u *pgUOW) insertTransfers(table string, consensusTime int64, transfers []stream.Transfer) error {
	stmt, err := u.tx.Prepare(
		`INSERT INTO ` + table + ` (consensus_time, account, amount) VALUES ($1, $2, $3)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range transfers {
		if _, err := stmt.Exec(consensusTime, t.Account, t.Amount); err != nil {
			return err
		}
	}
	return nil
}

func (u *pgUOW) Commit() error {
	return u.tx.Commit()
}

func (u *pgUOW) Rollback() error {
	return u.tx.Rollback()
}
