// Package bundle packs a manifest and its fragments into one deterministic
// tar archive for hand-off, and unpacks it again with every fragment checked
// against its CID.
//
// Layout:
//
//	manifest.json              JSON manifest with fragment CIDs recorded
//	fragments/<fragment name>  one entry per fragment, in manifest order
//	index.json                 CIDs and sizes of everything above
package bundle

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"xdao.co/pixzle/cidutil"
	"xdao.co/pixzle/manifest"
	"xdao.co/pixzle/storage"
)

// FormatVersion is the current bundle index schema version.
const FormatVersion = 1

const (
	indexName      = "index.json"
	fragmentPrefix = "fragments/"
)

var epoch0 = time.Unix(0, 0).UTC()

// ExportOptions controls bundle export behavior.
type ExportOptions struct {
	Compression Compression
}

// Bundle is the content of an imported archive.
type Bundle struct {
	Manifest *manifest.Manifest
	// Fragments are in manifest order.
	Fragments   [][]byte
	Compression Compression
}

// Export writes m and fragments (manifest order) as a bundle.
//
// The written manifest records the fragment CIDs. If m already records CIDs
// they must match the fragments. Output bytes depend only on the inputs and
// the compression.
func Export(w io.Writer, m *manifest.Manifest, fragments [][]byte, opts ExportOptions) error {
	if m == nil {
		return errors.New("bundle: nil manifest")
	}
	if err := m.Validate(); err != nil {
		return err
	}
	if err := manifest.ValidateFragmentCount(len(fragments), m); err != nil {
		return err
	}

	out := m.Clone()
	cids := make([]string, len(fragments))
	for i, f := range fragments {
		cids[i] = cidutil.String(f)
		if cids[i] == "" {
			return fmt.Errorf("bundle: fragment %d: %w", i, storage.ErrInvalidCID)
		}
		if len(m.Fragments) > 0 && m.Fragments[i] != cids[i] {
			return fmt.Errorf("bundle: fragment %d: %w", i, storage.ErrCIDMismatch)
		}
	}
	out.Fragments = cids

	mb, err := manifest.MarshalJSON(out)
	if err != nil {
		return err
	}
	manifestCID, err := manifest.CID(out)
	if err != nil {
		return err
	}

	cw, err := compressWriter(w, opts.Compression)
	if err != nil {
		return err
	}
	tw := tar.NewWriter(cw)
	fail := func(err error) error {
		_ = tw.Close()
		_ = cw.Close()
		return err
	}

	idx := indexJSON{
		Version:     FormatVersion,
		CIDCodec:    "raw",
		Multihash:   "sha2-256",
		ManifestCID: manifestCID.String(),
		Entries:     []indexEntry{{Name: manifest.JSONFileName, CID: cidutil.String(mb), Size: len(mb)}},
	}
	if err := writeFile(tw, manifest.JSONFileName, mb); err != nil {
		return fail(err)
	}
	for i, f := range fragments {
		name := fragmentPrefix + manifest.FragmentFileName(out, i)
		if err := writeFile(tw, name, f); err != nil {
			return fail(err)
		}
		idx.Entries = append(idx.Entries, indexEntry{Name: name, CID: cids[i], Size: len(f)})
	}

	ib, err := marshalIndexJSON(idx)
	if err != nil {
		return fail(err)
	}
	if err := writeFile(tw, indexName, ib); err != nil {
		return fail(err)
	}
	if err := tw.Close(); err != nil {
		_ = cw.Close()
		return err
	}
	return cw.Close()
}

// ImportOptions controls bundle import behavior.
type ImportOptions struct {
	// IgnoreUnknown skips unrecognized entries instead of failing.
	IgnoreUnknown bool
}

// Import reads a bundle, detecting its compression. Unknown entries are an
// error.
func Import(r io.Reader) (*Bundle, error) {
	return ImportWithOptions(r, ImportOptions{})
}

// ImportWithOptions reads a bundle and verifies every fragment against the
// CID the manifest records for it.
func ImportWithOptions(r io.Reader, opts ImportOptions) (*Bundle, error) {
	plain, comp, closeFn, err := decompressReader(r)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	tr := tar.NewReader(plain)
	var manifestBytes, indexBytes []byte
	files := map[string][]byte{}

	for {
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("bundle: %w", err)
		}
		name := cleanTarPath(h.Name)
		if name == "" {
			return nil, fmt.Errorf("bundle: invalid entry path: %q", h.Name)
		}
		if h.Typeflag != tar.TypeReg {
			if opts.IgnoreUnknown {
				continue
			}
			return nil, fmt.Errorf("bundle: unexpected tar entry type: %v (%s)", h.Typeflag, name)
		}

		known := name == manifest.JSONFileName || name == indexName || strings.HasPrefix(name, fragmentPrefix)
		if !known {
			if opts.IgnoreUnknown {
				continue
			}
			return nil, fmt.Errorf("bundle: unknown entry: %s", name)
		}
		payload, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("bundle: read %s: %w", name, err)
		}
		switch {
		case name == manifest.JSONFileName:
			manifestBytes = payload
		case name == indexName:
			indexBytes = payload
		default:
			if _, dup := files[name]; dup {
				return nil, fmt.Errorf("bundle: duplicate entry: %s", name)
			}
			files[name] = payload
		}
	}

	if manifestBytes == nil {
		return nil, errors.New("bundle: missing manifest.json")
	}
	m, err := manifest.Parse(manifestBytes)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if len(m.Fragments) != len(m.Images) {
		return nil, errors.New("bundle: manifest does not record fragment CIDs")
	}
	if indexBytes != nil {
		if err := checkIndex(indexBytes, m); err != nil {
			return nil, err
		}
	}

	fragments := make([][]byte, len(m.Images))
	for i := range m.Images {
		name := fragmentPrefix + manifest.FragmentFileName(m, i)
		data, ok := files[name]
		if !ok {
			return nil, fmt.Errorf("bundle: missing %s", name)
		}
		ok, err := cidutil.MatchesString(data, m.Fragments[i])
		if err != nil {
			return nil, fmt.Errorf("bundle: %s: %w", name, storage.ErrInvalidCID)
		}
		if !ok {
			return nil, fmt.Errorf("bundle: %s: %w", name, storage.ErrCIDMismatch)
		}
		fragments[i] = data
		delete(files, name)
	}
	if len(files) > 0 && !opts.IgnoreUnknown {
		for name := range files {
			return nil, fmt.Errorf("bundle: unexpected fragment entry: %s", name)
		}
	}
	return &Bundle{Manifest: m, Fragments: fragments, Compression: comp}, nil
}

// checkIndex cross-checks the advisory index against the manifest.
func checkIndex(b []byte, m *manifest.Manifest) error {
	var idx indexJSON
	if err := json.Unmarshal(b, &idx); err != nil {
		return fmt.Errorf("bundle: index.json: %w", err)
	}
	if idx.Version != FormatVersion {
		return fmt.Errorf("bundle: unsupported index version %d", idx.Version)
	}
	want, err := manifest.CID(m)
	if err != nil {
		return err
	}
	if idx.ManifestCID != want.String() {
		return fmt.Errorf("bundle: index.json manifest CID: %w", storage.ErrCIDMismatch)
	}
	return nil
}

type indexJSON struct {
	Version     int          `json:"version"`
	CIDCodec    string       `json:"cidCodec"`
	Multihash   string       `json:"multihash"`
	ManifestCID string       `json:"manifestCID"`
	Entries     []indexEntry `json:"entries"`
}

type indexEntry struct {
	Name string `json:"name"`
	CID  string `json:"cid"`
	Size int    `json:"size"`
}

func marshalIndexJSON(idx indexJSON) ([]byte, error) {
	b, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func writeFile(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  epoch0,
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := io.Copy(tw, bytes.NewReader(content))
	return err
}

func cleanTarPath(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return ""
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return ""
		}
	}
	return name
}
