package nodebook

import (
	"fmt"
	"testing"

	"github.com/mirrornet/mirror/src/crypto/keys"
)

func newTestNodes(t *testing.T, stakes []int64) []*Node {
	nodes := []*Node{}
	for i, stake := range stakes {
		key, err := keys.GenerateECDSAKey()
		if err != nil {
			t.Fatal(err)
		}
		nodes = append(nodes, NewNode(
			fmt.Sprintf("0.%d", 3+i),
			keys.PublicKeyHex(&key.PublicKey),
			stake,
			fmt.Sprintf("node%d", i),
		))
	}
	return nodes
}

func TestNewNodeBook(t *testing.T) {
	nodes := newTestNodes(t, []int64{1, 2, 3})

	book := NewNodeBook(nodes)

	if book.Len() != 3 {
		t.Fatalf("book should have 3 nodes, not %d", book.Len())
	}

	for _, n := range nodes {
		if book.ByAccount[n.Account] != n {
			t.Fatalf("ByAccount[%s] not set", n.Account)
		}
		if book.ByPubKey[n.PubKeyHex] != n {
			t.Fatalf("ByPubKey[%s] not set", n.PubKeyHex)
		}
		if n.ID == 0 {
			t.Fatalf("node %s ID not computed", n.Account)
		}
	}

	if book.TotalStake() != 6 {
		t.Fatalf("total stake should be 6, not %d", book.TotalStake())
	}
}

func TestReachesQuorum(t *testing.T) {
	// 7 equally-weighted nodes; quorum requires strictly more than 7/3 stake,
	// so 2 is not enough and 3 is.
	nodes := newTestNodes(t, []int64{1, 1, 1, 1, 1, 1, 1})
	book := NewNodeBook(nodes)

	if book.ReachesQuorum(2) {
		t.Fatal("2 of 7 should not reach quorum")
	}
	if !book.ReachesQuorum(3) {
		t.Fatal("3 of 7 should reach quorum")
	}

	// exactly one third never reaches quorum
	nodes = newTestNodes(t, []int64{10, 10, 10})
	book = NewNodeBook(nodes)

	if book.ReachesQuorum(10) {
		t.Fatal("exactly one third of total stake should not reach quorum")
	}
	if !book.ReachesQuorum(11) {
		t.Fatal("stake above one third should reach quorum")
	}
}

func TestWithNodes(t *testing.T) {
	nodes := newTestNodes(t, []int64{5, 5})
	book := NewNodeBook(nodes)

	replacement := newTestNodes(t, []int64{7, 7, 7})
	newBook := book.WithNodes(replacement)

	if book.Len() != 2 || book.TotalStake() != 10 {
		t.Fatalf("original book was mutated: %d nodes, %d stake", book.Len(), book.TotalStake())
	}
	if newBook.Len() != 3 || newBook.TotalStake() != 21 {
		t.Fatalf("new book wrong: %d nodes, %d stake", newBook.Len(), newBook.TotalStake())
	}
}

func TestNodeVerify(t *testing.T) {
	key, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}

	node := NewNode("0.3", keys.PublicKeyHex(&key.PublicKey), 1, "node0")

	hash := []byte("0123456789012345678901234567890123456789012345th")

	r, s, err := keys.Sign(key, hash)
	if err != nil {
		t.Fatal(err)
	}
	sig := keys.EncodeSignature(r, s)

	ok, err := node.Verify(hash, sig)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("signature should verify")
	}

	otherKey, _ := keys.GenerateECDSAKey()
	other := NewNode("0.4", keys.PublicKeyHex(&otherKey.PublicKey), 1, "node1")

	ok, err = other.Verify(hash, sig)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("signature should not verify against another node's key")
	}
}

func TestUpdateBodyRoundTrip(t *testing.T) {
	nodes := newTestNodes(t, []int64{1, 2})
	body := NewUpdateBody(nodes)

	raw, err := body.Marshal()
	if err != nil {
		t.Fatal(err)
	}

	decoded := new(UpdateBody)
	if err := decoded.Unmarshal(raw); err != nil {
		t.Fatal(err)
	}

	if len(decoded.Nodes) != 2 {
		t.Fatalf("decoded %d nodes, want 2", len(decoded.Nodes))
	}
	for i, n := range decoded.Nodes {
		if n.Account != nodes[i].Account ||
			n.PubKeyHex != nodes[i].PubKeyHex ||
			n.Stake != nodes[i].Stake {
			t.Fatalf("node %d mismatch: %v", i, n)
		}
	}
}
