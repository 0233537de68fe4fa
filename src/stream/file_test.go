package stream

import (
	"bytes"
	"encoding/binary"
	"reflect"
	"testing"

	"github.com/mirrornet/mirror/src/crypto"
	"github.com/mirrornet/mirror/src/crypto/keys"
)

func testTransactions() []*Transaction {
	return []*Transaction{
		{
			ConsensusTime: 1000,
			Type:          TxTransfer,
			Payer:         "0.100",
			NodeAccount:   "0.3",
			Memo:          "first",
			Fee:           112,
			Result:        ResultOK,
			Transfers: []Transfer{
				{Account: "0.100", Amount: -256},
				{Account: "0.100", Amount: -112},
				{Account: "0.200", Amount: 256},
				{Account: "0.3", Amount: 16},
				{Account: "0.98", Amount: 96},
			},
			Declared: []Transfer{
				{Account: "0.100", Amount: -256},
				{Account: "0.200", Amount: 256},
			},
		},
		{
			ConsensusTime: 1001,
			Type:          TxCreateAccount,
			Payer:         "0.100",
			NodeAccount:   "0.3",
			Fee:           50,
			Result:        ResultOK,
			Created:       &EntityRef{Realm: 0, Num: 1001, Type: EntityAccount},
			AutoRenew:     7776000,
		},
	}
}

func TestFileRoundTrip(t *testing.T) {
	prevHash := make([]byte, crypto.SHA384Size)
	txs := testTransactions()

	content, err := Compose(prevHash, txs)
	if err != nil {
		t.Fatal(err)
	}

	file, err := Parse(content)
	if err != nil {
		t.Fatal(err)
	}

	if file.Version != FileVersion {
		t.Fatalf("version should be %d, not %d", FileVersion, file.Version)
	}
	if !bytes.Equal(file.PrevHash, prevHash) {
		t.Fatalf("prev-hash mismatch")
	}
	if !bytes.Equal(file.Hash, FileHash(content)) {
		t.Fatalf("content hash mismatch")
	}
	if len(file.Transactions) != len(txs) {
		t.Fatalf("decoded %d transactions, want %d", len(file.Transactions), len(txs))
	}
	for i := range txs {
		if !reflect.DeepEqual(file.Transactions[i], txs[i]) {
			t.Fatalf("transaction %d mismatch:\ngot  %#v\nwant %#v", i, file.Transactions[i], txs[i])
		}
	}
}

func TestReadPrevHash(t *testing.T) {
	prevHash := FileHash([]byte("previous file"))

	content, err := Compose(prevHash, testTransactions())
	if err != nil {
		t.Fatal(err)
	}

	got, err := ReadPrevHash(content)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, prevHash) {
		t.Fatalf("ReadPrevHash mismatch")
	}

	if _, err := ReadPrevHash([]byte("short")); !IsCorrupt(err) {
		t.Fatalf("expected CorruptError for short content, got %v", err)
	}
}

func TestParseCorruption(t *testing.T) {
	prevHash := make([]byte, crypto.SHA384Size)
	content, err := Compose(prevHash, testTransactions())
	if err != nil {
		t.Fatal(err)
	}

	// flip one byte inside the record region
	tampered := append([]byte{}, content...)
	tampered[headerLength+10] ^= 0xff

	if _, err := Parse(tampered); !IsCorrupt(err) {
		t.Fatalf("expected CorruptError for tampered content, got %v", err)
	}

	// unsupported version
	badVersion := append([]byte{}, content...)
	binary.BigEndian.PutUint32(badVersion[:4], FileVersion+1)

	if _, err := Parse(badVersion); !IsCorrupt(err) {
		t.Fatalf("expected CorruptError for bad version, got %v", err)
	}

	// too short for an envelope
	if _, err := Parse(content[:20]); !IsCorrupt(err) {
		t.Fatalf("expected CorruptError for truncated content, got %v", err)
	}
}

func TestSignatureFile(t *testing.T) {
	key, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}

	content, err := Compose(make([]byte, crypto.SHA384Size), testTransactions())
	if err != nil {
		t.Fatal(err)
	}

	sigFile, err := ComposeSignature(key, content)
	if err != nil {
		t.Fatal(err)
	}

	hash, sig, err := ParseSignature(sigFile)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(hash, FileHash(content)) {
		t.Fatalf("signature file hash mismatch")
	}

	r, s, err := keys.DecodeSignature(sig)
	if err != nil {
		t.Fatal(err)
	}
	if !keys.Verify(&key.PublicKey, hash, r, s) {
		t.Fatalf("signature should verify")
	}
}

func TestNameForTimestamp(t *testing.T) {
	ts := int64(1560000000000000000)

	name := Record.NameForTimestamp(ts)
	got, err := Record.TimestampFromName(name)
	if err != nil {
		t.Fatal(err)
	}
	if got != ts {
		t.Fatalf("timestamp round trip: got %d, want %d", got, ts)
	}

	// zero-padding keeps lexicographic order aligned with consensus order
	earlier := Record.NameForTimestamp(999)
	if !(earlier < name) {
		t.Fatalf("%q should sort before %q", earlier, name)
	}

	if !IsSigName(SigName(name)) {
		t.Fatalf("SigName should produce a signature name")
	}
	if IsSigName(name) {
		t.Fatalf("%q should not be a signature name", name)
	}
}
