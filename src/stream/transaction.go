package stream

import (
	"bytes"

	"github.com/ugorji/go/codec"
)

// EntityType tags the kind of entity a transaction creates or references.
type EntityType uint8

const (
	// EntityAccount ...
	EntityAccount EntityType = iota
	// EntityContract ...
	EntityContract
	// EntityFile ...
	EntityFile
	// EntityTopic ...
	EntityTopic
)

// String ...
func (e EntityType) String() string {
	switch e {
	case EntityAccount:
		return "account"
	case EntityContract:
		return "contract"
	case EntityFile:
		return "file"
	case EntityTopic:
		return "topic"
	}
	return "unknown"
}

// EntityRef points at an entity by (realm, number) and carries its type tag.
type EntityRef struct {
	Realm int64
	Num   int64
	Type  EntityType
}

// Account returns the entity's (realm, num) pair as an AccountID.
func (e EntityRef) Account() AccountID {
	return AccountID{Realm: e.Realm, Num: e.Num}
}

// TxType discriminates transaction records.
type TxType uint8

const (
	// TxTransfer moves value between accounts.
	TxTransfer TxType = iota
	// TxCreateAccount ...
	TxCreateAccount
	// TxCreateContract ...
	TxCreateContract
	// TxCreateFile ...
	TxCreateFile
	// TxCreateTopic ...
	TxCreateTopic
	// TxNodeBookUpdate is the administrative transaction that replaces the
	// node book. Its payload lives in UpdateBody.
	TxNodeBookUpdate
)

// ResultCode is the outcome code assigned to a transaction at consensus.
type ResultCode uint16

const (
	// ResultOK ...
	ResultOK ResultCode = 0
	// ResultInvalid ...
	ResultInvalid ResultCode = 1
	// ResultInsufficientBalance ...
	ResultInsufficientBalance ResultCode = 10
)

// Transfer is one line of a transfer list: a signed amount applied to an
// account. Amounts for one account may repeat within a list and must be summed
// for any balance computation.
type Transfer struct {
	Account string
	Amount  int64
}

// Transaction is one record of a record stream file. ConsensusTime is unique
// and monotonically increasing within a stream; it is the primary identity of
// the transaction and the idempotency key that makes replays safe.
//
// Transfers is the itemized outcome list, fee lines included; it sums to zero.
// Declared is the transfer list as declared in the transaction body, without
// fee lines; it is the source of non-fee transfer derivation and is empty for
// non-transfer transactions.
type Transaction struct {
	ConsensusTime int64
	Type          TxType
	Payer         string
	NodeAccount   string
	Memo          string
	Fee           int64
	Result        ResultCode
	Transfers     []Transfer
	Declared      []Transfer
	Created       *EntityRef //entity created by this transaction, successful creates only
	AutoRenew     int64      //creation metadata, seconds
	Proxy         string     //creation metadata, proxy target account
	UpdateBody    []byte     //payload of a TxNodeBookUpdate
}

// Successful says whether the transaction reached consensus with an OK
// outcome.
func (t *Transaction) Successful() bool {
	return t.Result == ResultOK
}

// Marshal - canonical json encoding of the Transaction
func (t *Transaction) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(t); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal ...
func (t *Transaction) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	if err := dec.Decode(t); err != nil {
		return err
	}

	return nil
}
