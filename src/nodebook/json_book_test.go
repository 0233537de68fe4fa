package nodebook

import (
	"io/ioutil"
	"os"
	"testing"
)

func TestJSONNodeBook(t *testing.T) {
	// Create a test dir
	dir, err := ioutil.TempDir("", "nodebook")
	if err != nil {
		t.Fatalf("err: %v ", err)
	}
	defer os.RemoveAll(dir)

	// Create the store
	store := NewJSONNodeBook(dir)

	// Try a read, should get nothing
	book, err := store.NodeBook()
	if err == nil {
		t.Fatalf("store.NodeBook() should generate an error")
	}
	if book != nil {
		t.Fatalf("book: %v", book)
	}

	nodes := newTestNodes(t, []int64{10, 20, 30})

	if err := store.Write(nodes); err != nil {
		t.Fatalf("err: %v", err)
	}

	// Try a read, should find 3 nodes
	book, err = store.NodeBook()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if book.Len() != 3 {
		t.Fatalf("book: %v", book)
	}
	if book.TotalStake() != 60 {
		t.Fatalf("total stake should be 60, not %d", book.TotalStake())
	}

	for i, n := range book.Nodes {
		if n.Account != nodes[i].Account {
			t.Fatalf("nodes[%d] Account should be %s, not %s", i,
				nodes[i].Account, n.Account)
		}
		if n.PubKeyHex != nodes[i].PubKeyHex {
			t.Fatalf("nodes[%d] PubKeyHex should be %s, not %s", i,
				nodes[i].PubKeyHex, n.PubKeyHex)
		}
		if n.ID != nodes[i].ID {
			t.Fatalf("nodes[%d] ID should be %d, not %d", i,
				nodes[i].ID, n.ID)
		}
	}
}
