package stream

import (
	"fmt"
	"strconv"
	"strings"
)

// Type distinguishes the three kinds of stream files nodes produce.
type Type uint8

const (
	// Record streams carry transactions and their outcomes.
	Record Type = iota
	// Event streams carry raw consensus events.
	Event
	// Balance streams carry periodic account balance snapshots.
	Balance
)

// String ...
func (t Type) String() string {
	switch t {
	case Record:
		return "record"
	case Event:
		return "event"
	case Balance:
		return "balance"
	}
	return fmt.Sprintf("Type(%d)", t)
}

// Dir returns the directory name under which nodes publish files of this
// type.
func (t Type) Dir() string {
	switch t {
	case Record:
		return "recordstreams"
	case Event:
		return "eventstreams"
	case Balance:
		return "balancestreams"
	}
	return ""
}

// Extension returns the filename extension for this stream type.
func (t Type) Extension() string {
	switch t {
	case Record:
		return ".rcd"
	case Event:
		return ".evt"
	case Balance:
		return ".bal"
	}
	return ""
}

// ParseType parses a stream type name as used in configuration.
func ParseType(s string) (Type, error) {
	switch s {
	case "record":
		return Record, nil
	case "event":
		return Event, nil
	case "balance":
		return Balance, nil
	}
	return 0, fmt.Errorf("unknown stream type %q", s)
}

// SigSuffix is appended to a file name to obtain the name of the matching
// signature file.
const SigSuffix = "_sig"

// NameForTimestamp builds the file name for a batch starting at the given
// consensus timestamp (unix nanoseconds). The timestamp is zero-padded so
// lexicographic order matches consensus order.
func (t Type) NameForTimestamp(ts int64) string {
	return fmt.Sprintf("%019d%s", ts, t.Extension())
}

// TimestampFromName extracts the starting consensus timestamp encoded in a
// file name.
func (t Type) TimestampFromName(name string) (int64, error) {
	base := strings.TrimSuffix(name, t.Extension())
	if base == name {
		return 0, fmt.Errorf("file name %q does not carry extension %s", name, t.Extension())
	}
	ts, err := strconv.ParseInt(base, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("file name %q does not encode a timestamp: %v", name, err)
	}
	return ts, nil
}

// SigName returns the name of the signature file attached to name.
func SigName(name string) string {
	return name + SigSuffix
}

// IsSigName says whether name designates a signature file.
func IsSigName(name string) bool {
	return strings.HasSuffix(name, SigSuffix)
}
