package engine

import (
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"

	"xdao.co/pixzle/cidutil"
	"xdao.co/pixzle/manifest"
	"xdao.co/pixzle/model"
	"xdao.co/pixzle/storage"
)

var ErrMissingCAS = errors.New("engine: missing CAS")

// Stored is what Store wrote: the manifest (with fragment CIDs recorded) and
// its CID.
type Stored struct {
	Manifest    *manifest.Manifest
	ManifestCID cid.Cid
	Fragments   []cid.Cid
}

// Store puts every fragment of res into cas, records their CIDs in a copy
// of the manifest and puts the canonical manifest encoding last.
//
// res.Manifest is not modified.
func Store(cas storage.CAS, res *Result) (*Stored, error) {
	if cas == nil {
		return nil, ErrMissingCAS
	}
	if res == nil || res.Manifest == nil {
		return nil, model.NewError(model.KindConfig, "store", "fragmentation result is required")
	}
	if err := manifest.ValidateFragmentCount(len(res.Fragments), res.Manifest); err != nil {
		return nil, err
	}

	m := res.Manifest.Clone()
	ids := make([]cid.Cid, len(res.Fragments))
	m.Fragments = make([]string, len(res.Fragments))
	for i, f := range res.Fragments {
		id, err := cas.Put(f)
		if err != nil {
			return nil, fmt.Errorf("store fragment %d: %w", i, err)
		}
		ids[i] = id
		m.Fragments[i] = id.String()
	}

	b, err := manifest.CanonicalBytes(m)
	if err != nil {
		return nil, err
	}
	mid, err := cas.Put(b)
	if err != nil {
		return nil, fmt.Errorf("store manifest: %w", err)
	}
	return &Stored{Manifest: m, ManifestCID: mid, Fragments: ids}, nil
}

// Load fetches the manifest stored under manifestCID and every fragment it
// records, verifying each against its CID.
func Load(cas storage.CAS, manifestCID cid.Cid) (*manifest.Manifest, []Piece, error) {
	if cas == nil {
		return nil, nil, ErrMissingCAS
	}
	b, err := hydrate(cas, manifestCID)
	if err != nil {
		return nil, nil, fmt.Errorf("load manifest: %w", err)
	}
	m, err := manifest.Parse(b)
	if err != nil {
		return nil, nil, err
	}
	if len(m.Fragments) == 0 {
		return nil, nil, model.NewError(model.KindManifest, "load", "manifest records no fragment CIDs")
	}
	if err := manifest.ValidateFragmentCount(len(m.Fragments), m); err != nil {
		return nil, nil, err
	}

	fragments := make([]Piece, len(m.Fragments))
	for i, s := range m.Fragments {
		id, err := cid.Decode(s)
		if err != nil {
			return nil, nil, fmt.Errorf("load fragment %d: %w", i, storage.ErrInvalidCID)
		}
		data, err := hydrate(cas, id)
		if err != nil {
			return nil, nil, fmt.Errorf("load fragment %d: %w", i, err)
		}
		fragments[i] = PieceBytes(data)
	}
	return m, fragments, nil
}

func hydrate(cas storage.CAS, id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	b, err := cas.Get(id)
	if err != nil {
		return nil, err
	}
	ok, err := cidutil.Matches(b, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, storage.ErrCIDMismatch
	}
	return b, nil
}
