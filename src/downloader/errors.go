package downloader

import (
	"fmt"

	"github.com/mirrornet/mirror/src/stream"
)

// RoundErrType ...
type RoundErrType uint32

const (
	// NoNextFile means no node has published a file after the checkpoint yet.
	// The round is a no-op, not a failure.
	NoNextFile RoundErrType = iota
	// QuorumNotReached means no group of identical content gathered, after
	// signature verification, stake exceeding the quorum fraction.
	QuorumNotReached
	// HashChainMismatch means the winning content's embedded prev-hash does
	// not match the checkpoint and no bypass window covers the round.
	HashChainMismatch
)

// RoundError reports a failed verification round. Every RoundError leaves the
// checkpoint untouched, so the same file is retried on the next scheduled
// round.
type RoundError struct {
	errType    RoundErrType
	streamType stream.Type
	file       string
	msg        string
}

// NewRoundError ...
func NewRoundError(errType RoundErrType, streamType stream.Type, file string, format string, args ...interface{}) RoundError {
	return RoundError{
		errType:    errType,
		streamType: streamType,
		file:       file,
		msg:        fmt.Sprintf(format, args...),
	}
}

// Error implements the Error interface
func (e RoundError) Error() string {
	m := ""
	switch e.errType {
	case NoNextFile:
		m = "No Next File"
	case QuorumNotReached:
		m = "Quorum Not Reached"
	case HashChainMismatch:
		m = "Hash Chain Mismatch"
	}

	return fmt.Sprintf("%s round, %s, %s: %s", e.streamType, e.file, m, e.msg)
}

// IsRound checks that an error is of type RoundError and that its code matches
// the provided code.
func IsRound(err error, t RoundErrType) bool {
	roundErr, ok := err.(RoundError)
	return ok && roundErr.errType == t
}
