package localfs

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ipfs/go-cid"

	"xdao.co/pixzle/cidutil"
	"xdao.co/pixzle/storage"
)

// CAS keeps fragments and manifests as read-only files under a directory.
//
// Objects are sharded by the last two characters of their CID: every CIDv1
// string starts with the same multibase prefix, so the tail is what spreads
// them. Get re-hashes what it reads, so a fragment altered on disk surfaces
// as storage.ErrCIDMismatch rather than as scrambled pixels.
type CAS struct {
	root string
}

var _ storage.CAS = (*CAS)(nil)

// New returns a CAS rooted at root, creating the directory when needed.
func New(root string) (*CAS, error) {
	if root == "" {
		return nil, errors.New("localfs: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("localfs: %w", err)
	}
	return &CAS{root: root}, nil
}

// Root is the directory objects are stored under.
func (c *CAS) Root() string { return c.root }

// Put stores data under its CID. Storing the same bytes again is a no-op;
// finding different bytes under that CID is storage.ErrImmutable.
func (c *CAS) Put(data []byte) (cid.Cid, error) {
	id, err := cidutil.Sum(data)
	if err != nil {
		return cid.Undef, err
	}
	if !id.Defined() {
		return cid.Undef, storage.ErrInvalidCID
	}

	path := c.pathFor(id)
	if _, err := os.Stat(path); err == nil {
		existing, err := c.Get(id)
		if err != nil || !bytes.Equal(existing, data) {
			return cid.Undef, fmt.Errorf("localfs: put %s: %w", id, storage.ErrImmutable)
		}
		return id, nil
	}
	if err := writeObject(path, data); err != nil {
		return cid.Undef, fmt.Errorf("localfs: put %s: %w", id, err)
	}
	return id, nil
}

// writeObject writes data to a temporary file in the shard and renames it
// into place, so a reader never sees a partial fragment.
func writeObject(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".put-*")
	if err != nil {
		return err
	}
	cleanup := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Chmod(0o444); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return nil
}

func (c *CAS) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	b, err := os.ReadFile(c.pathFor(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("localfs: get %s: %w", id, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("localfs: get %s: %w", id, err)
	}
	ok, err := cidutil.Matches(b, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("localfs: get %s: %w", id, storage.ErrCIDMismatch)
	}
	return b, nil
}

func (c *CAS) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	_, err := os.Stat(c.pathFor(id))
	return err == nil
}

func (c *CAS) pathFor(id cid.Cid) string {
	s := id.String()
	if len(s) < 2 {
		return filepath.Join(c.root, s)
	}
	return filepath.Join(c.root, s[len(s)-2:], s)
}
