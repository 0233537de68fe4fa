// Package keys implements the public key cryptography used to attest stream
// files.
//
// Every source node owns a cryptographic key-pair. The private key signs the
// hash of every stream file the node produces; the mirror uses the public key
// recorded in the node book to verify that signature before counting the
// node's stake towards quorum.
//
// We use elliptic curve cryptography (ECDSA) with the secp256k1 curve because
// it is also used by Bitcoin and Ethereum, which means that Bitcoin and
// Ethereum keys can be used to operate a source node.
package keys
