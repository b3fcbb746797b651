package bundle_test

import (
	"archive/tar"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"xdao.co/pixzle/cidutil"
	"xdao.co/pixzle/manifest"
	"xdao.co/pixzle/model"
	"xdao.co/pixzle/shuffle"
	"xdao.co/pixzle/storage"
	"xdao.co/pixzle/storage/bundle"
)

func testManifest(t *testing.T, n int) *manifest.Manifest {
	t.Helper()
	cfg, err := manifest.ResolveConfig(manifest.Options{Seed: shuffle.StringSeed("bundle")})
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}
	images := make([]manifest.ImageInfo, n)
	for i := range images {
		images[i] = manifest.ImageInfo{W: 2 + i, H: 2}
	}
	m, err := manifest.Build(cfg, images, manifest.BuildOptions{ID: "8c0d6c59-1f57-4d0e-9d0c-2f8f7b0b1a11"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return m
}

func testFragments(n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = bytes.Repeat([]byte{byte('a' + i)}, 64+i)
	}
	return out
}

func export(t *testing.T, m *manifest.Manifest, frags [][]byte, c bundle.Compression) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := bundle.Export(&buf, m, frags, bundle.ExportOptions{Compression: c}); err != nil {
		t.Fatalf("Export(%s): %v", c, err)
	}
	return buf.Bytes()
}

func TestBundle_RoundTrip(t *testing.T) {
	m := testManifest(t, 3)
	frags := testFragments(3)
	for _, c := range []bundle.Compression{bundle.CompressionNone, bundle.CompressionZstd, bundle.CompressionLZ4} {
		t.Run(c.String(), func(t *testing.T) {
			b, err := bundle.Import(bytes.NewReader(export(t, m, frags, c)))
			if err != nil {
				t.Fatalf("Import: %v", err)
			}
			if b.Compression != c {
				t.Fatalf("detected compression %s, want %s", b.Compression, c)
			}
			if len(b.Fragments) != len(frags) {
				t.Fatalf("fragments: got %d want %d", len(b.Fragments), len(frags))
			}
			for i := range frags {
				if !bytes.Equal(b.Fragments[i], frags[i]) {
					t.Fatalf("fragment %d differs", i)
				}
				if b.Manifest.Fragments[i] != cidutil.String(frags[i]) {
					t.Fatalf("fragment %d CID not recorded", i)
				}
			}
			if b.Manifest.ID != m.ID || b.Manifest.Config.Seed != m.Config.Seed {
				t.Fatalf("manifest not preserved: %+v", b.Manifest)
			}
		})
	}
	if len(m.Fragments) != 0 {
		t.Fatalf("Export modified the input manifest")
	}
}

func TestBundle_ExportIsDeterministic(t *testing.T) {
	m := testManifest(t, 2)
	frags := testFragments(2)
	for _, c := range []bundle.Compression{bundle.CompressionNone, bundle.CompressionZstd, bundle.CompressionLZ4} {
		if !bytes.Equal(export(t, m, frags, c), export(t, m, frags, c)) {
			t.Fatalf("%s: expected deterministic bundle bytes", c)
		}
	}
}

func TestBundle_EntryLayout(t *testing.T) {
	m := testManifest(t, 2)
	tr := tar.NewReader(bytes.NewReader(export(t, m, testFragments(2), bundle.CompressionNone)))
	var names []string
	for {
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if h.ModTime.Unix() != 0 {
			t.Fatalf("%s: non-zero mtime %v", h.Name, h.ModTime)
		}
		names = append(names, h.Name)
	}
	want := "manifest.json,fragments/img_1_fragmented.png,fragments/img_2_fragmented.png,index.json"
	if got := strings.Join(names, ","); got != want {
		t.Fatalf("entries: got %s want %s", got, want)
	}
}

func TestBundle_ExportRejectsMismatch(t *testing.T) {
	m := testManifest(t, 2)
	if err := bundle.Export(io.Discard, m, testFragments(3), bundle.ExportOptions{}); err == nil {
		t.Fatalf("expected count mismatch")
	}
	withCIDs := m.Clone()
	withCIDs.Fragments = []string{cidutil.String([]byte("x")), cidutil.String([]byte("y"))}
	err := bundle.Export(io.Discard, withCIDs, testFragments(2), bundle.ExportOptions{})
	if !errors.Is(err, storage.ErrCIDMismatch) {
		t.Fatalf("expected ErrCIDMismatch, got %v", err)
	}
}

func TestBundle_ExportRejectsShortCIDList(t *testing.T) {
	m := testManifest(t, 2)
	m.Fragments = []string{cidutil.String(testFragments(1)[0])}
	err := bundle.Export(io.Discard, m, testFragments(2), bundle.ExportOptions{})
	if !model.IsKind(err, model.KindManifest) {
		t.Fatalf("expected manifest error, got %v", err)
	}
}

type entry struct {
	name string
	body []byte
}

func writeTar(t *testing.T, entries []entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		if err := tw.WriteHeader(&tar.Header{Name: e.name, Mode: 0o644, Size: int64(len(e.body)), Typeflag: tar.TypeReg}); err != nil {
			t.Fatalf("WriteHeader: %v", err)
		}
		if _, err := tw.Write(e.body); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return buf.Bytes()
}

// rebuilt re-packs a valid export, letting edit change entries.
func rebuilt(t *testing.T, edit func([]entry) []entry) []byte {
	t.Helper()
	m := testManifest(t, 2)
	tr := tar.NewReader(bytes.NewReader(export(t, m, testFragments(2), bundle.CompressionNone)))
	var entries []entry
	for {
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		body, err := io.ReadAll(tr)
		if err != nil {
			t.Fatalf("ReadAll: %v", err)
		}
		entries = append(entries, entry{h.Name, body})
	}
	return writeTar(t, edit(entries))
}

func TestImport_RejectsTamperedFragment(t *testing.T) {
	data := rebuilt(t, func(es []entry) []entry {
		es[1].body = []byte("tampered")
		return es
	})
	if _, err := bundle.Import(bytes.NewReader(data)); !errors.Is(err, storage.ErrCIDMismatch) {
		t.Fatalf("expected ErrCIDMismatch, got %v", err)
	}
}

func TestImport_UnknownEntries(t *testing.T) {
	data := rebuilt(t, func(es []entry) []entry {
		return append(es, entry{"notes.txt", []byte("hi")})
	})
	if _, err := bundle.Import(bytes.NewReader(data)); err == nil {
		t.Fatalf("expected unknown entry error")
	}
	if _, err := bundle.ImportWithOptions(bytes.NewReader(data), bundle.ImportOptions{IgnoreUnknown: true}); err != nil {
		t.Fatalf("IgnoreUnknown import: %v", err)
	}
}

func TestImport_MissingPieces(t *testing.T) {
	noManifest := rebuilt(t, func(es []entry) []entry { return es[1:] })
	if _, err := bundle.Import(bytes.NewReader(noManifest)); err == nil {
		t.Fatalf("expected missing manifest error")
	}
	noFragment := rebuilt(t, func(es []entry) []entry { return append(es[:1], es[2:]...) })
	if _, err := bundle.Import(bytes.NewReader(noFragment)); err == nil {
		t.Fatalf("expected missing fragment error")
	}
	noIndex := rebuilt(t, func(es []entry) []entry { return es[:3] })
	if _, err := bundle.Import(bytes.NewReader(noIndex)); err != nil {
		t.Fatalf("index.json is advisory, got %v", err)
	}
}

func TestImport_RejectsTraversal(t *testing.T) {
	data := writeTar(t, []entry{{"../manifest.json", []byte("{}")}})
	if _, err := bundle.Import(bytes.NewReader(data)); err == nil {
		t.Fatalf("expected invalid path error")
	}
}

func TestParseCompression(t *testing.T) {
	for in, want := range map[string]bundle.Compression{"": bundle.CompressionNone, "none": bundle.CompressionNone, "zstd": bundle.CompressionZstd, "lz4": bundle.CompressionLZ4} {
		got, err := bundle.ParseCompression(in)
		if err != nil || got != want {
			t.Fatalf("ParseCompression(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := bundle.ParseCompression("gzip"); err == nil {
		t.Fatalf("expected error for gzip")
	}
}
