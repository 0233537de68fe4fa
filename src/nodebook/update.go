package nodebook

import (
	"bytes"

	"github.com/mirrornet/mirror/src/crypto"
	"github.com/ugorji/go/codec"
)

// UpdateBody is the payload of a node-book-update system transaction. It
// carries the full replacement node list; there is no incremental form.
type UpdateBody struct {
	Nodes []*Node
}

// NewUpdateBody ...
func NewUpdateBody(nodes []*Node) *UpdateBody {
	return &UpdateBody{Nodes: nodes}
}

// Marshal - canonical json encoding of UpdateBody
func (u *UpdateBody) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(u); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal ...
func (u *UpdateBody) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	if err := dec.Decode(u); err != nil {
		return err
	}

	return nil
}

// Hash returns the SHA256 hash of the marshalled UpdateBody
func (u *UpdateBody) Hash() ([]byte, error) {
	hashBytes, err := u.Marshal()
	if err != nil {
		return nil, err
	}
	return crypto.SHA256(hashBytes), nil
}
