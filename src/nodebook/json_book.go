package nodebook

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"path/filepath"
	"strings"
	"sync"
)

const jsonNodeBookPath = "nodes.json"

// JSONNodeBook is used to provide node-book persistence on disk in the form of
// a JSON file. It holds the genesis book that the mirror bootstraps from;
// subsequent books only exist as the effect of update transactions.
type JSONNodeBook struct {
	l    sync.Mutex
	path string
}

// NewJSONNodeBook creates a new JSONNodeBook with reference to a base
// directory where the JSON file resides.
func NewJSONNodeBook(base string) *JSONNodeBook {
	store := &JSONNodeBook{
		path: filepath.Join(base, jsonNodeBookPath),
	}
	return store
}

// NodeBook parses the underlying JSON file and returns the corresponding
// NodeBook.
func (j *JSONNodeBook) NodeBook() (*NodeBook, error) {
	j.l.Lock()
	defer j.l.Unlock()

	// Read the file
	buf, err := ioutil.ReadFile(j.path)
	if err != nil {
		return nil, err
	}

	// Check for no nodes
	if len(buf) == 0 {
		return nil, nil
	}

	// Decode the nodes
	var nodes []*Node
	dec := json.NewDecoder(bytes.NewReader(buf))
	if err := dec.Decode(&nodes); err != nil {
		return nil, err
	}

	cleanseNodes(nodes)

	return NewNodeBook(nodes), nil
}

// cleanseNodes standardises the public key strings to match the format derived
// from a private key.
func cleanseNodes(nodes []*Node) {
	for _, node := range nodes {
		node.PubKeyHex = "0X" + strings.TrimPrefix(strings.ToUpper(node.PubKeyHex), "0X")
	}
}

// Write persists a node list to the JSON file.
func (j *JSONNodeBook) Write(nodes []*Node) error {
	j.l.Lock()
	defer j.l.Unlock()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(nodes); err != nil {
		return err
	}

	// Write out as JSON
	return ioutil.WriteFile(j.path, buf.Bytes(), 0755)
}
