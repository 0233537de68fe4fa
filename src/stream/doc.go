// Package stream defines the stream-file format and the parser that decodes a
// validated file into an ordered transaction sequence.
//
// A stream file is one batch of a node's append-only output for a time
// window. Its name encodes the consensus timestamp at which the batch starts,
// and its content is a binary envelope: a version word, the hash of the
// previous file of the same stream kind, a sequence of length-prefixed
// transaction records, and a trailing hash over everything before it. The
// trailing hash makes in-flight corruption detectable without signatures; the
// embedded prev-hash chains files into a tamper-evident sequence.
//
// Each node also publishes a detached signature file ("<name>_sig") containing
// the content hash and the node's signature over it. The downloader package
// uses those to decide which copy of a file is canonical.
package stream
