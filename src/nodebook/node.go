package nodebook

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/mirrornet/mirror/src/common"
	"github.com/mirrornet/mirror/src/crypto/keys"
)

// Node represents one source node: the account it operates under, the public
// key it signs stream files with, and its stake weight. Stake is a
// non-negative integer; a node with zero stake is tolerated but contributes
// nothing to quorum.
type Node struct {
	ID        uint32 `json:"-"`
	Account   string
	PubKeyHex string
	Stake     int64
	Moniker   string
}

// NewNode is a factory method for a Node. It computes the ID from the public
// key.
func NewNode(account, pubKeyHex string, stake int64, moniker string) *Node {
	node := &Node{
		Account:   account,
		PubKeyHex: pubKeyHex,
		Stake:     stake,
		Moniker:   moniker,
	}

	node.computeID()

	return node
}

// PubKeyBytes returns the byte representation of the node's public key.
func (n *Node) PubKeyBytes() ([]byte, error) {
	return common.DecodeFromString(n.PubKeyHex)
}

// PubKey returns the node's public key as an ecdsa.PublicKey.
func (n *Node) PubKey() (*ecdsa.PublicKey, error) {
	pubBytes, err := n.PubKeyBytes()
	if err != nil {
		return nil, err
	}
	return keys.ToPublicKey(pubBytes), nil
}

// Verify checks a signature, as produced by keys.EncodeSignature, against the
// node's public key.
func (n *Node) Verify(hash []byte, sig string) (bool, error) {
	pubKey, err := n.PubKey()
	if err != nil {
		return false, err
	}

	r, s, err := keys.DecodeSignature(sig)
	if err != nil {
		return false, err
	}

	return keys.Verify(pubKey, hash, r, s), nil
}

func (n *Node) computeID() error {
	pubKey, err := n.PubKeyBytes()

	if err != nil {
		return err
	}

	n.ID = common.Hash32(pubKey)

	return nil
}

func (n *Node) String() string {
	return fmt.Sprintf("Node{Account: %s, Stake: %d, Moniker: %s}", n.Account, n.Stake, n.Moniker)
}
