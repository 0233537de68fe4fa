package nodebook

import (
	"bytes"
	"encoding/json"

	"github.com/mirrornet/mirror/src/common"
	"github.com/mirrornet/mirror/src/crypto"
)

// NodeBook is the set of source nodes active for a contiguous range of
// consensus time. It is immutable; WithNodes returns a new NodeBook instead of
// mutating the receiver, so readers never observe a partially-applied update.
type NodeBook struct {
	Nodes     []*Node          `json:"nodes"`
	ByAccount map[string]*Node `json:"-"`
	ByPubKey  map[string]*Node `json:"-"`

	//cached values
	hash       []byte
	hex        string
	totalStake *int64
}

/* Constructors */

// NewNodeBook creates a new NodeBook from a list of Nodes
func NewNodeBook(nodes []*Node) *NodeBook {
	book := &NodeBook{
		ByAccount: make(map[string]*Node),
		ByPubKey:  make(map[string]*Node),
	}

	for _, node := range nodes {
		// nodes decoded from JSON have no ID yet
		if node.ID == 0 {
			node.computeID()
		}
		book.ByAccount[node.Account] = node
		book.ByPubKey[node.PubKeyHex] = node
	}

	book.Nodes = nodes

	return book
}

// NewNodeBookFromNodeSliceBytes creates a new NodeBook from a node slice in
// JSON format
func NewNodeBookFromNodeSliceBytes(nodeSliceBytes []byte) (*NodeBook, error) {
	nodes := []*Node{}

	b := bytes.NewBuffer(nodeSliceBytes)
	dec := json.NewDecoder(b)

	err := dec.Decode(&nodes)
	if err != nil {
		return nil, err
	}

	return NewNodeBook(nodes), nil
}

// WithNodes returns a new NodeBook whose entry set is entirely replaced by the
// provided nodes. An update transaction replaces the whole book rather than
// patching individual entries.
func (book *NodeBook) WithNodes(nodes []*Node) *NodeBook {
	return NewNodeBook(nodes)
}

/* Utilities */

// Len returns the number of Nodes in the NodeBook
func (book *NodeBook) Len() int {
	return len(book.ByAccount)
}

// TotalStake returns the sum of all stake weights in the NodeBook.
func (book *NodeBook) TotalStake() int64 {
	if book.totalStake == nil {
		val := int64(0)
		for _, n := range book.Nodes {
			val += n.Stake
		}
		book.totalStake = &val
	}
	return *book.totalStake
}

// ReachesQuorum says whether the given accumulated stake exceeds one third of
// the book's total stake. The comparison is strict; a group sitting exactly at
// one third does not reach quorum.
func (book *NodeBook) ReachesQuorum(stake int64) bool {
	return 3*stake > book.TotalStake()
}

// Hash uniquely identifies a NodeBook. It is computed by hashing (SHA256) the
// nodes' public keys together, one by one.
func (book *NodeBook) Hash() ([]byte, error) {
	if len(book.hash) == 0 {
		hash := []byte{}
		for _, n := range book.Nodes {
			pk, err := n.PubKeyBytes()
			if err != nil {
				return nil, err
			}
			hash = crypto.SimpleHashFromTwoHashes(hash, pk)
		}
		book.hash = hash
	}
	return book.hash, nil
}

// Hex is the hexadecimal representation of Hash
func (book *NodeBook) Hex() string {
	if len(book.hex) == 0 {
		hash, _ := book.Hash()
		book.hex = common.EncodeToString(hash)
	}
	return book.hex
}

// Marshal marshals the NodeBook's node slice
func (book *NodeBook) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(book.Nodes); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Accounts returns the NodeBook's slice of account IDs
func (book *NodeBook) Accounts() []string {
	res := []string{}

	for _, node := range book.Nodes {
		res = append(res, node.Account)
	}

	return res
}
