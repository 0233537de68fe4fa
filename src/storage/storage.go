// Package storage defines the object-fetch adapter through which the
// downloader reads per-node stream files from remote storage. The core only
// needs list/fetch semantics and a stable node-to-prefix mapping; the storage
// technology behind the interface is an implementation detail.
package storage

import (
	"github.com/mirrornet/mirror/src/common"
	"github.com/mirrornet/mirror/src/stream"
)

// ObjectStore is the narrow interface the downloader fetches through. A fetch
// failure for one node only excludes that node from the current round; it is
// never retried within the round.
type ObjectStore interface {
	// ListFiles returns the names of stream files of the given type published
	// after afterName, in ascending name order, with signature files filtered
	// out. An empty afterName lists from the beginning.
	ListFiles(streamType stream.Type, afterName string) ([]string, error)

	// Fetch returns the raw bytes a node published under name. It returns a
	// KeyNotFound StoreErr when the node has not published the file.
	Fetch(nodeAccount string, streamType stream.Type, name string) ([]byte, error)
}

// NewNotFoundErr builds the StoreErr returned when a node has not published a
// file.
func NewNotFoundErr(key string) common.StoreErr {
	return common.NewStoreErr("ObjectStore", common.KeyNotFound, key)
}

// IsNotFound checks for the KeyNotFound StoreErr produced by Fetch.
func IsNotFound(err error) bool {
	return common.IsStore(err, common.KeyNotFound)
}
