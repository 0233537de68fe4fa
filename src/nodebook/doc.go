// Package nodebook tracks the evolving set of source nodes and their stake
// weights.
//
// A source node is an entity that produces stream files and attests to them
// with its signing key. Nodes are identified by an account ID of the form
// "realm.num", carry a secp256k1 public key, and a non-negative stake weight.
// The collection of nodes active at a given consensus time is a NodeBook; the
// downloader reads a NodeBook snapshot to compute stake-weighted quorum over
// candidate files.
//
// NodeBooks are immutable. An update arrives as a special system transaction
// observed in the stream; applying it produces a brand new NodeBook so that a
// concurrently running verification round never observes a partially-applied
// update. The Manager retains superseded books, keyed by the consensus time at
// which they became effective, so past stream files can be reprocessed against
// the book that was active when they were produced.
//
// Upon starting up, the mirror expects to find a nodes.json file in its data
// directory defining the genesis NodeBook.
package nodebook
