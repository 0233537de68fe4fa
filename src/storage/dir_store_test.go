package storage

import (
	"bytes"
	"io/ioutil"
	"os"
	"reflect"
	"testing"

	"github.com/mirrornet/mirror/src/stream"
)

func TestDirStore(t *testing.T) {
	dir, err := ioutil.TempDir("", "dirstore")
	if err != nil {
		t.Fatalf("err: %v ", err)
	}
	defer os.RemoveAll(dir)

	store := NewDirStore(dir)

	name1 := stream.Record.NameForTimestamp(1000)
	name2 := stream.Record.NameForTimestamp(2000)

	// two nodes publish file 1, one node publishes file 2
	store.Put("0.3", stream.Record, name1, []byte("content1"))
	store.Put("0.4", stream.Record, name1, []byte("content1"))
	store.Put("0.3", stream.Record, name2, []byte("content2"))

	// signature files must not show up in listings
	store.Put("0.3", stream.Record, stream.SigName(name1), []byte("sig"))

	names, err := store.ListFiles(stream.Record, "")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(names, []string{name1, name2}) {
		t.Fatalf("names: %v", names)
	}

	names, err = store.ListFiles(stream.Record, name1)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(names, []string{name2}) {
		t.Fatalf("names after %s: %v", name1, names)
	}

	// a stream type nobody published is just empty
	names, err = store.ListFiles(stream.Balance, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 0 {
		t.Fatalf("balance names: %v", names)
	}

	content, err := store.Fetch("0.4", stream.Record, name1)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(content, []byte("content1")) {
		t.Fatalf("content: %s", content)
	}

	// node 0.4 never published file 2
	if _, err := store.Fetch("0.4", stream.Record, name2); !IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
}
