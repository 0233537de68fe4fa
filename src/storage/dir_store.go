package storage

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"

	"github.com/mirrornet/mirror/src/stream"
)

// DirStore reads stream files from a local directory tree laid out the way
// node buckets are: <root>/<nodeAccount>/<streamDir>/<fileName>. A mounted
// bucket, an rsync'd copy, or a test fixture all satisfy it.
type DirStore struct {
	root string
}

// NewDirStore creates a DirStore rooted at root.
func NewDirStore(root string) *DirStore {
	return &DirStore{root: root}
}

// ListFiles implements ObjectStore. It merges the listings of every node
// directory, because no single node is trusted to know the full set of file
// names.
func (d *DirStore) ListFiles(streamType stream.Type, afterName string) ([]string, error) {
	nodeDirs, err := ioutil.ReadDir(d.root)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	for _, nodeDir := range nodeDirs {
		if !nodeDir.IsDir() {
			continue
		}

		files, err := ioutil.ReadDir(filepath.Join(d.root, nodeDir.Name(), streamType.Dir()))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}

		for _, f := range files {
			name := f.Name()
			if stream.IsSigName(name) {
				continue
			}
			if name > afterName {
				seen[name] = true
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	return names, nil
}

// Fetch implements ObjectStore.
func (d *DirStore) Fetch(nodeAccount string, streamType stream.Type, name string) ([]byte, error) {
	path := filepath.Join(d.root, nodeAccount, streamType.Dir(), name)

	content, err := ioutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewNotFoundErr(path)
		}
		return nil, err
	}

	return content, nil
}

// Put writes a file into the tree. It exists for source-node tooling and test
// fixtures; the mirror itself never writes to the store.
func (d *DirStore) Put(nodeAccount string, streamType stream.Type, name string, content []byte) error {
	dir := filepath.Join(d.root, nodeAccount, streamType.Dir())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return ioutil.WriteFile(filepath.Join(dir, name), content, 0644)
}
