package downloader

import (
	"bytes"
	"crypto/ecdsa"
	"fmt"
	"sort"
	"testing"
	"time"

	cm "github.com/mirrornet/mirror/src/common"
	"github.com/mirrornet/mirror/src/checkpoint"
	"github.com/mirrornet/mirror/src/crypto"
	"github.com/mirrornet/mirror/src/crypto/keys"
	"github.com/mirrornet/mirror/src/nodebook"
	"github.com/mirrornet/mirror/src/storage"
	"github.com/mirrornet/mirror/src/stream"
)

type testNode struct {
	node *nodebook.Node
	key  *ecdsa.PrivateKey
}

func initTestNodes(t *testing.T, stakes []int64) []*testNode {
	nodes := []*testNode{}
	for i, stake := range stakes {
		key, err := keys.GenerateECDSAKey()
		if err != nil {
			t.Fatal(err)
		}
		node := nodebook.NewNode(
			fmt.Sprintf("0.%d", 3+i),
			keys.PublicKeyHex(&key.PublicKey),
			stake,
			fmt.Sprintf("node%d", i),
		)
		nodes = append(nodes, &testNode{node: node, key: key})
	}
	return nodes
}

func bookOf(nodes []*testNode) *nodebook.NodeBook {
	slice := []*nodebook.Node{}
	for _, n := range nodes {
		slice = append(slice, n.node)
	}
	return nodebook.NewNodeBook(slice)
}

func testFile(t *testing.T, prevHash []byte, ts int64) []byte {
	content, err := stream.Compose(prevHash, []*stream.Transaction{
		{
			ConsensusTime: ts,
			Type:          stream.TxTransfer,
			Payer:         "0.100",
			NodeAccount:   "0.3",
			Result:        stream.ResultOK,
			Transfers: []stream.Transfer{
				{Account: "0.100", Amount: -10},
				{Account: "0.200", Amount: 10},
			},
			Declared: []stream.Transfer{
				{Account: "0.100", Amount: -10},
				{Account: "0.200", Amount: 10},
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return content
}

// publish stores content and a matching signature for a node. Signing with
// badKey attests content the node did not actually agree to.
func publish(t *testing.T, store *storage.InmemStore, n *testNode, name string, content []byte, badKey *ecdsa.PrivateKey) {
	key := n.key
	if badKey != nil {
		key = badKey
	}
	sig, err := stream.ComposeSignature(key, content)
	if err != nil {
		t.Fatal(err)
	}
	store.Put(n.node.Account, stream.Record, name, content)
	store.Put(n.node.Account, stream.Record, stream.SigName(name), sig)
}

type testCommitter struct {
	files []*stream.File
	err   error
}

func (c *testCommitter) commit(f *stream.File) error {
	if c.err != nil {
		return c.err
	}
	c.files = append(c.files, f)
	return nil
}

func newTestDownloader(t *testing.T, nodes []*testNode, store *storage.InmemStore) (*Downloader, *checkpoint.InmemStore, *testCommitter) {
	books := nodebook.NewManager(bookOf(nodes), cm.NewTestEntry(t, "nodebook"))
	checkpoints := checkpoint.NewInmemStore()
	committer := &testCommitter{}

	d := NewDownloader(
		stream.Record,
		store,
		checkpoints,
		books,
		committer.commit,
		time.Second,
		cm.NewTestEntry(t, "downloader"),
	)

	return d, checkpoints, committer
}

func TestDownloadNextBatch(t *testing.T) {
	nodes := initTestNodes(t, []int64{1, 1, 1})
	store := storage.NewInmemStore()

	name := stream.Record.NameForTimestamp(1000)
	content := testFile(t, make([]byte, crypto.SHA384Size), 1000)
	for _, n := range nodes {
		publish(t, store, n, name, content, nil)
	}

	d, checkpoints, committer := newTestDownloader(t, nodes, store)

	res, err := d.DownloadNextBatch()
	if err != nil {
		t.Fatal(err)
	}

	if res.FileName != name {
		t.Fatalf("FileName should be %s, not %s", name, res.FileName)
	}
	if !bytes.Equal(res.Hash, stream.FileHash(content)) {
		t.Fatalf("Hash mismatch")
	}
	if len(res.Signers) != 3 {
		t.Fatalf("3 nodes should have signed, not %d", len(res.Signers))
	}
	if res.Transactions != 1 {
		t.Fatalf("Transactions should be 1, not %d", res.Transactions)
	}
	if len(committer.files) != 1 {
		t.Fatalf("commit should have been called once, not %d times", len(committer.files))
	}

	cp, err := checkpoints.Get(stream.Record)
	if err != nil {
		t.Fatal(err)
	}
	if cp.LastFileName != name {
		t.Fatalf("checkpoint LastFileName should be %s, not %s", name, cp.LastFileName)
	}
	if !bytes.Equal(cp.LastFileHash, stream.FileHash(content)) {
		t.Fatalf("checkpoint LastFileHash mismatch")
	}

	// nothing left to download
	if _, err := d.DownloadNextBatch(); !IsRound(err, NoNextFile) {
		t.Fatalf("expected NoNextFile, got %v", err)
	}
}

func TestQuorumNotReached(t *testing.T) {
	// 3 nodes whose signatures are invalid return content A; 4 nodes holding
	// exactly one third of total stake return content B. Neither group clears
	// the quorum fraction, so the round fails and the checkpoint is untouched.
	nodes := initTestNodes(t, []int64{3, 3, 2, 1, 1, 1, 1})
	store := storage.NewInmemStore()

	name := stream.Record.NameForTimestamp(1000)
	contentA := testFile(t, make([]byte, crypto.SHA384Size), 1000)
	contentB := testFile(t, make([]byte, crypto.SHA384Size), 1001)

	strangerKey, _ := keys.GenerateECDSAKey()
	for _, n := range nodes[:3] {
		publish(t, store, n, name, contentA, strangerKey)
	}
	for _, n := range nodes[3:] {
		publish(t, store, n, name, contentB, nil)
	}

	d, checkpoints, committer := newTestDownloader(t, nodes, store)

	_, err := d.DownloadNextBatch()
	if !IsRound(err, QuorumNotReached) {
		t.Fatalf("expected QuorumNotReached, got %v", err)
	}
	if len(committer.files) != 0 {
		t.Fatalf("nothing should have been committed")
	}
	if _, err := checkpoints.Get(stream.Record); !cm.IsStore(err, cm.KeyNotFound) {
		t.Fatalf("checkpoint should be untouched, got %v", err)
	}
}

func TestSignatureDemotion(t *testing.T) {
	// the highest-staked node signs with the wrong key; the two honest nodes
	// still clear quorum between them
	nodes := initTestNodes(t, []int64{2, 1, 1})
	store := storage.NewInmemStore()

	name := stream.Record.NameForTimestamp(1000)
	content := testFile(t, make([]byte, crypto.SHA384Size), 1000)

	strangerKey, _ := keys.GenerateECDSAKey()
	publish(t, store, nodes[0], name, content, strangerKey)
	publish(t, store, nodes[1], name, content, nil)
	publish(t, store, nodes[2], name, content, nil)

	d, _, _ := newTestDownloader(t, nodes, store)

	res, err := d.DownloadNextBatch()
	if err != nil {
		t.Fatal(err)
	}

	sort.Strings(res.Signers)
	if len(res.Signers) != 2 || res.Signers[0] != nodes[1].node.Account || res.Signers[1] != nodes[2].node.Account {
		t.Fatalf("signers should be the two honest nodes, got %v", res.Signers)
	}
	if reason, ok := res.Excluded[nodes[0].node.Account]; !ok || reason != "invalid signature" {
		t.Fatalf("node %s should be excluded for invalid signature, got %v",
			nodes[0].node.Account, res.Excluded)
	}
}

func TestFetchFailuresExcluded(t *testing.T) {
	nodes := initTestNodes(t, []int64{1, 1, 1, 1})
	store := storage.NewInmemStore()

	name := stream.Record.NameForTimestamp(1000)
	content := testFile(t, make([]byte, crypto.SHA384Size), 1000)
	for _, n := range nodes {
		publish(t, store, n, name, content, nil)
	}

	// one node unreachable, one node missing the file
	store.FailNode(nodes[0].node.Account)
	missingKey, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}
	missing := &testNode{
		key:  missingKey,
		node: nodebook.NewNode("0.9", keys.PublicKeyHex(&missingKey.PublicKey), 1, "missing"),
	}
	nodes = append(nodes, missing)

	d, _, _ := newTestDownloader(t, nodes, store)

	res, err := d.DownloadNextBatch()
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Signers) != 3 {
		t.Fatalf("3 healthy nodes should have signed, not %d", len(res.Signers))
	}
	if _, ok := res.Excluded[nodes[0].node.Account]; !ok {
		t.Fatalf("failing node should be excluded")
	}
	if _, ok := res.Excluded[missing.node.Account]; !ok {
		t.Fatalf("node without the file should be excluded")
	}
}

func TestSlowNodeDoesNotBlockRound(t *testing.T) {
	nodes := initTestNodes(t, []int64{1, 1, 1})
	store := storage.NewInmemStore()

	name := stream.Record.NameForTimestamp(1000)
	content := testFile(t, make([]byte, crypto.SHA384Size), 1000)
	for _, n := range nodes {
		publish(t, store, n, name, content, nil)
	}
	store.DelayNode(nodes[2].node.Account, 500*time.Millisecond)

	books := nodebook.NewManager(bookOf(nodes), cm.NewTestEntry(t, "nodebook"))
	committer := &testCommitter{}
	d := NewDownloader(
		stream.Record,
		store,
		checkpoint.NewInmemStore(),
		books,
		committer.commit,
		50*time.Millisecond,
		cm.NewTestEntry(t, "downloader"),
	)

	start := time.Now()
	res, err := d.DownloadNextBatch()
	if err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 400*time.Millisecond {
		t.Fatalf("round should not have waited for the slow node, took %v", elapsed)
	}

	// either the slow node timed out, or the two fast nodes settled quorum
	// before it responded
	if len(res.Signers) < 2 {
		t.Fatalf("at least the two fast nodes should have signed, got %v", res.Signers)
	}
}

func TestHashChainMismatch(t *testing.T) {
	nodes := initTestNodes(t, []int64{1, 1, 1})
	store := storage.NewInmemStore()

	name1 := stream.Record.NameForTimestamp(1000)
	content1 := testFile(t, make([]byte, crypto.SHA384Size), 1000)
	for _, n := range nodes {
		publish(t, store, n, name1, content1, nil)
	}

	d, checkpoints, _ := newTestDownloader(t, nodes, store)

	if _, err := d.DownloadNextBatch(); err != nil {
		t.Fatal(err)
	}

	// second file does not chain to the first
	name2 := stream.Record.NameForTimestamp(2000)
	content2 := testFile(t, stream.FileHash([]byte("not the first file")), 2000)
	for _, n := range nodes {
		publish(t, store, n, name2, content2, nil)
	}

	if _, err := d.DownloadNextBatch(); !IsRound(err, HashChainMismatch) {
		t.Fatalf("expected HashChainMismatch, got %v", err)
	}

	// checkpoint still names the first file, so the round is retried
	cp, err := checkpoints.Get(stream.Record)
	if err != nil {
		t.Fatal(err)
	}
	if cp.LastFileName != name1 {
		t.Fatalf("checkpoint should still name %s, not %s", name1, cp.LastFileName)
	}
}

func TestBypassWindow(t *testing.T) {
	nodes := initTestNodes(t, []int64{1, 1, 1})
	store := storage.NewInmemStore()

	name1 := stream.Record.NameForTimestamp(1000)
	content1 := testFile(t, make([]byte, crypto.SHA384Size), 1000)
	for _, n := range nodes {
		publish(t, store, n, name1, content1, nil)
	}

	d, checkpoints, _ := newTestDownloader(t, nodes, store)

	if _, err := d.DownloadNextBatch(); err != nil {
		t.Fatal(err)
	}

	// a mismatching file at t=2000, with a bypass window covering t=2001
	name2 := stream.Record.NameForTimestamp(2000)
	content2 := testFile(t, stream.FileHash([]byte("unrelated")), 2000)
	for _, n := range nodes {
		publish(t, store, n, name2, content2, nil)
	}

	cp, _ := checkpoints.Get(stream.Record)
	cp2 := &checkpoint.Checkpoint{
		StreamType:   cp.StreamType,
		LastFileName: cp.LastFileName,
		LastFileHash: cp.LastFileHash,
		BypassUntil:  2001,
	}
	if err := checkpoints.Set(cp2); err != nil {
		t.Fatal(err)
	}

	res, err := d.DownloadNextBatch()
	if err != nil {
		t.Fatal(err)
	}
	if !res.BypassUsed {
		t.Fatal("round should have used the bypass window")
	}

	// the same kind of mismatch past the window fails
	name3 := stream.Record.NameForTimestamp(2002)
	content3 := testFile(t, stream.FileHash([]byte("also unrelated")), 2002)
	for _, n := range nodes {
		publish(t, store, n, name3, content3, nil)
	}

	if _, err := d.DownloadNextBatch(); !IsRound(err, HashChainMismatch) {
		t.Fatalf("expected HashChainMismatch past the bypass window, got %v", err)
	}
}

func TestCorruptContentFailsRound(t *testing.T) {
	nodes := initTestNodes(t, []int64{1, 1, 1})
	store := storage.NewInmemStore()

	// all nodes agree on (and correctly sign) a corrupt envelope
	corrupt := []byte("this is not a stream file envelope at all, way too short for anything")
	name := stream.Record.NameForTimestamp(1000)
	for _, n := range nodes {
		publish(t, store, n, name, corrupt, nil)
	}

	d, checkpoints, committer := newTestDownloader(t, nodes, store)

	_, err := d.DownloadNextBatch()
	if !stream.IsCorrupt(err) {
		t.Fatalf("expected CorruptError, got %v", err)
	}
	if len(committer.files) != 0 {
		t.Fatalf("nothing should have been committed")
	}
	if _, err := checkpoints.Get(stream.Record); !cm.IsStore(err, cm.KeyNotFound) {
		t.Fatalf("checkpoint should be untouched, got %v", err)
	}
}

func TestCommitFailureLeavesCheckpoint(t *testing.T) {
	nodes := initTestNodes(t, []int64{1, 1, 1})
	store := storage.NewInmemStore()

	name := stream.Record.NameForTimestamp(1000)
	content := testFile(t, make([]byte, crypto.SHA384Size), 1000)
	for _, n := range nodes {
		publish(t, store, n, name, content, nil)
	}

	d, checkpoints, committer := newTestDownloader(t, nodes, store)
	committer.err = fmt.Errorf("repository unavailable")

	if _, err := d.DownloadNextBatch(); err == nil {
		t.Fatal("round should fail when commit fails")
	}
	if _, err := checkpoints.Get(stream.Record); !cm.IsStore(err, cm.KeyNotFound) {
		t.Fatalf("checkpoint must not advance past an uncommitted file, got %v", err)
	}

	// once the repository recovers, the same file is ingested
	committer.err = nil
	res, err := d.DownloadNextBatch()
	if err != nil {
		t.Fatal(err)
	}
	if res.FileName != name {
		t.Fatalf("retried round should ingest %s, not %s", name, res.FileName)
	}
}
