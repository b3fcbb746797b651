package engine

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"xdao.co/pixzle/codec"
	"xdao.co/pixzle/compliance"
	"xdao.co/pixzle/manifest"
	"xdao.co/pixzle/model"
	"xdao.co/pixzle/shuffle"
	"xdao.co/pixzle/source"
	"xdao.co/pixzle/storage"
	"xdao.co/pixzle/storage/localfs"
)

const testManifestID = "6f1c2b1e-8d4a-4c1e-9a55-0b6f2f4b9c10"

func testOptions() Options {
	return Options{
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Workers:    3,
		ManifestID: testManifestID,
		Now:        func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) },
	}
}

func strictOptions() Options {
	o := testOptions()
	o.Mode = compliance.Strict
	return o
}

func testConfig(t *testing.T, blockSize int, cross bool) manifest.Config {
	t.Helper()
	cfg, err := manifest.ResolveConfig(manifest.Options{
		BlockSize:         blockSize,
		Seed:              shuffle.NumericSeed(42),
		CrossImageShuffle: cross,
	})
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}
	return cfg
}

// pattern fills a raster with bytes that differ per pixel and per image so a
// misplaced block cannot go unnoticed.
func pattern(w, h, salt int) model.RawImage {
	r := model.NewRawImage(w, h)
	for i := range r.Pix {
		r.Pix[i] = byte(i*7 + salt*31 + i/5)
	}
	for i := 3; i < len(r.Pix); i += 4 {
		r.Pix[i] = 255
	}
	return r
}

func rawImages(rasters ...model.RawImage) []Image {
	out := make([]Image, len(rasters))
	for i, r := range rasters {
		out[i] = Image{Source: source.Raw{Image: r}}
	}
	return out
}

func requireKind(t *testing.T, err error, kind model.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := model.KindOf(err); got != kind {
		t.Fatalf("expected kind %s, got %q (%v)", kind, got, err)
	}
}

func requireSameImages(t *testing.T, got, want []model.RawImage) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("image count: got %d want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Width != want[i].Width || got[i].Height != want[i].Height {
			t.Fatalf("image %d: got %dx%d want %dx%d", i, got[i].Width, got[i].Height, want[i].Width, want[i].Height)
		}
		if !bytes.Equal(got[i].Pix, want[i].Pix) {
			t.Fatalf("image %d: pixels differ", i)
		}
	}
}

func TestFragmentRestore_RoundTrip(t *testing.T) {
	cases := []struct {
		name      string
		blockSize int
		sizes     [][2]int
	}{
		{"even", 2, [][2]int{{4, 4}, {6, 2}}},
		{"non-divisible", 2, [][2]int{{5, 3}, {7, 7}, {1, 1}}},
		{"block size three", 3, [][2]int{{10, 4}, {3, 3}}},
		{"block larger than image", 8, [][2]int{{5, 3}, {2, 9}}},
		{"single image", 4, [][2]int{{13, 11}}},
	}
	for _, tc := range cases {
		for _, cross := range []bool{false, true} {
			name := tc.name + "/per-image"
			if cross {
				name = tc.name + "/cross-image"
			}
			t.Run(name, func(t *testing.T) {
				var want []model.RawImage
				for i, s := range tc.sizes {
					want = append(want, pattern(s[0], s[1], i))
				}
				cfg := testConfig(t, tc.blockSize, cross)
				res, err := Fragment(context.Background(), rawImages(want...), cfg, testOptions())
				if err != nil {
					t.Fatalf("Fragment: %v", err)
				}
				if len(res.Fragments) != len(want) {
					t.Fatalf("fragments: got %d want %d", len(res.Fragments), len(want))
				}
				got, err := Restore(context.Background(), Pieces(res.Fragments), res.Manifest, testOptions())
				if err != nil {
					t.Fatalf("Restore: %v", err)
				}
				requireSameImages(t, got, want)
			})
		}
	}
}

func TestFragment_ShufflesBlocks(t *testing.T) {
	img := pattern(16, 16, 0)
	res, err := Fragment(context.Background(), rawImages(img), testConfig(t, 2, false), testOptions())
	if err != nil {
		t.Fatalf("Fragment: %v", err)
	}
	frag, err := codec.Decode(res.Fragments[0])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if frag.Width != 16 || frag.Height != 16 {
		t.Fatalf("fragment size: got %dx%d", frag.Width, frag.Height)
	}
	if bytes.Equal(frag.Pix, img.Pix) {
		t.Fatalf("fragment is identical to the input")
	}
}

func TestFragment_Deterministic(t *testing.T) {
	imgs := rawImages(pattern(9, 5, 0), pattern(4, 4, 1))
	cfg := testConfig(t, 2, true)
	a, err := Fragment(context.Background(), imgs, cfg, testOptions())
	if err != nil {
		t.Fatalf("Fragment: %v", err)
	}
	b, err := Fragment(context.Background(), imgs, cfg, testOptions())
	if err != nil {
		t.Fatalf("Fragment: %v", err)
	}
	for i := range a.Fragments {
		if !bytes.Equal(a.Fragments[i], b.Fragments[i]) {
			t.Fatalf("fragment %d differs between runs", i)
		}
	}
	ma, _ := manifest.MarshalJSON(a.Manifest)
	mb, _ := manifest.MarshalJSON(b.Manifest)
	if !bytes.Equal(ma, mb) {
		t.Fatalf("manifests differ between runs")
	}
}

func TestFragment_PerImageFragmentSizes(t *testing.T) {
	// 2x2 holds one block and 6x6 nine; their fragments are 1x1 and 3x3 grids.
	imgs := rawImages(pattern(2, 2, 0), pattern(6, 6, 1))
	res, err := Fragment(context.Background(), imgs, testConfig(t, 2, false), testOptions())
	if err != nil {
		t.Fatalf("Fragment: %v", err)
	}
	wantSizes := [][2]int{{2, 2}, {6, 6}}
	for i, want := range wantSizes {
		frag, err := codec.Decode(res.Fragments[i])
		if err != nil {
			t.Fatalf("Decode %d: %v", i, err)
		}
		if frag.Width != want[0] || frag.Height != want[1] {
			t.Fatalf("fragment %d: got %dx%d want %dx%d", i, frag.Width, frag.Height, want[0], want[1])
		}
	}
}

func TestFragment_CrossImageEmptyTrailingFragment(t *testing.T) {
	// 2 + 1 + 1 + 1 = 5 blocks over 4 fragments: counts 2, 2, 1, 0.
	want := []model.RawImage{pattern(4, 2, 0), pattern(2, 2, 1), pattern(2, 2, 2), pattern(1, 1, 3)}
	res, err := Fragment(context.Background(), rawImages(want...), testConfig(t, 2, true), testOptions())
	if err != nil {
		t.Fatalf("Fragment: %v", err)
	}
	last, err := codec.Decode(res.Fragments[3])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if last.Width != 2 || last.Height != 2 {
		t.Fatalf("empty fragment: got %dx%d want 2x2", last.Width, last.Height)
	}
	for i, b := range last.Pix {
		if b != 0 {
			t.Fatalf("empty fragment byte %d = %d, want 0", i, b)
		}
	}
	got, err := Restore(context.Background(), Pieces(res.Fragments), res.Manifest, testOptions())
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	requireSameImages(t, got, want)
}

func TestFragment_InvalidInput(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, 2, false)

	_, err := Fragment(ctx, nil, cfg, testOptions())
	requireKind(t, err, model.KindConfig)

	_, err = Fragment(ctx, []Image{{}}, cfg, testOptions())
	requireKind(t, err, model.KindUnsupportedSource)

	bad := cfg
	bad.BlockSize = 0
	_, err = Fragment(ctx, rawImages(pattern(2, 2, 0)), bad, testOptions())
	requireKind(t, err, model.KindConfig)

	_, err = Fragment(ctx, []Image{{Source: source.Bytes{Data: []byte("not an image")}}}, cfg, testOptions())
	requireKind(t, err, model.KindCodec)
}

func TestFragment_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Fragment(ctx, rawImages(pattern(4, 4, 0), pattern(4, 4, 1)), testConfig(t, 2, false), testOptions())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFragment_PreserveNames(t *testing.T) {
	cfg, err := manifest.ResolveConfig(manifest.Options{Seed: shuffle.StringSeed("names"), PreserveName: true})
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}
	imgs := []Image{
		{Source: source.Raw{Image: pattern(3, 3, 0), Filename: "cat.png"}},
		{Source: source.Raw{Image: pattern(3, 3, 1)}, Name: "日本"},
	}
	res, err := Fragment(context.Background(), imgs, cfg, testOptions())
	if err != nil {
		t.Fatalf("Fragment: %v", err)
	}
	if got := manifest.DecodeName(res.Manifest.Images[0].Name); got != "cat" {
		t.Fatalf("name 0: got %q", got)
	}
	if got := manifest.DecodeName(res.Manifest.Images[1].Name); got != "日本" {
		t.Fatalf("name 1: got %q", got)
	}

	_, err = Fragment(context.Background(), []Image{
		{Source: source.Raw{Image: pattern(3, 3, 0)}, Name: "dup"},
		{Source: source.Raw{Image: pattern(3, 3, 1)}, Name: "dup"},
	}, cfg, testOptions())
	requireKind(t, err, model.KindDuplicateName)
}

func TestFragment_DuplicateNamesRejectedBeforeLoading(t *testing.T) {
	cfg, err := manifest.ResolveConfig(manifest.Options{Seed: shuffle.NumericSeed(7), PreserveName: true})
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}
	dir := t.TempDir()
	// Neither file exists: a load error would mean sources were read first.
	imgs := Images(
		source.FilePath(filepath.Join(dir, "a", "cat.png")),
		source.FilePath(filepath.Join(dir, "b", "cat.png")),
	)
	_, err = Fragment(context.Background(), imgs, cfg, testOptions())
	requireKind(t, err, model.KindDuplicateName)
}

func TestRestore_CountMismatchBeforeDecode(t *testing.T) {
	res, err := Fragment(context.Background(), rawImages(pattern(4, 4, 0), pattern(4, 4, 1)), testConfig(t, 2, false), testOptions())
	if err != nil {
		t.Fatalf("Fragment: %v", err)
	}
	// Undecodable bytes: a codec error here would mean decoding ran first.
	junk := Pieces([][]byte{[]byte("x"), []byte("y"), []byte("z")})
	_, err = Restore(context.Background(), junk, res.Manifest, testOptions())
	requireKind(t, err, model.KindCountMismatch)
}

func TestRestore_UndecodableFragment(t *testing.T) {
	res, err := Fragment(context.Background(), rawImages(pattern(4, 4, 0), pattern(4, 4, 1)), testConfig(t, 2, false), testOptions())
	if err != nil {
		t.Fatalf("Fragment: %v", err)
	}
	frags := Pieces([][]byte{res.Fragments[0], []byte("garbage")})
	_, err = Restore(context.Background(), frags, res.Manifest, testOptions())
	requireKind(t, err, model.KindCodec)
}

func TestRestore_NilManifest(t *testing.T) {
	_, err := Restore(context.Background(), nil, nil, testOptions())
	requireKind(t, err, model.KindConfig)
}

func TestRestore_DecodedFragments(t *testing.T) {
	want := []model.RawImage{pattern(5, 4, 0), pattern(3, 6, 1)}
	res, err := Fragment(context.Background(), rawImages(want...), testConfig(t, 2, true), testOptions())
	if err != nil {
		t.Fatalf("Fragment: %v", err)
	}
	frags := make([]Piece, len(res.Fragments))
	for i, data := range res.Fragments {
		img, err := codec.Decode(data)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		frags[i] = PieceImage(img)
	}
	got, err := Restore(context.Background(), frags, res.Manifest, testOptions())
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	requireSameImages(t, got, want)
}

func shortFragmentFixture(t *testing.T) (*Result, []Piece) {
	t.Helper()
	res, err := Fragment(context.Background(), rawImages(pattern(2, 2, 0), pattern(6, 6, 1)), testConfig(t, 2, false), testOptions())
	if err != nil {
		t.Fatalf("Fragment: %v", err)
	}
	small, err := codec.Encode(pattern(2, 2, 9), res.Manifest.Config.Output.FragmentOutput())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return res, Pieces([][]byte{res.Fragments[0], small})
}

func TestRestore_ShortFragment(t *testing.T) {
	res, frags := shortFragmentFixture(t)

	_, err := Restore(context.Background(), frags, res.Manifest, strictOptions())
	requireKind(t, err, model.KindIntegrity)

	got, err := Restore(context.Background(), frags, res.Manifest, testOptions())
	if err != nil {
		t.Fatalf("permissive Restore: %v", err)
	}
	if got[1].Width != 6 || got[1].Height != 6 {
		t.Fatalf("image 1: got %dx%d", got[1].Width, got[1].Height)
	}
}

func TestRestore_ShortFirstFragmentLeavesOtherImagesIntact(t *testing.T) {
	want := []model.RawImage{pattern(6, 6, 0), pattern(6, 6, 1), pattern(6, 6, 2)}
	res, err := Fragment(context.Background(), rawImages(want...), testConfig(t, 2, false), testOptions())
	if err != nil {
		t.Fatalf("Fragment: %v", err)
	}
	// One block where the manifest expects nine.
	small, err := codec.Encode(pattern(2, 2, 9), res.Manifest.Config.Output.FragmentOutput())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	frags := Pieces([][]byte{small, res.Fragments[1], res.Fragments[2]})

	got, err := Restore(context.Background(), frags, res.Manifest, testOptions())
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	requireSameImages(t, got[1:], want[1:])

	zeroCells := 0
	for cy := 0; cy < 3; cy++ {
		for cx := 0; cx < 3; cx++ {
			zero := true
			for y := cy * 2; y < cy*2+2; y++ {
				for x := cx * 2; x < cx*2+2; x++ {
					o := (y*6 + x) * 4
					if !bytes.Equal(got[0].Pix[o:o+4], []byte{0, 0, 0, 0}) {
						zero = false
					}
				}
			}
			if zero {
				zeroCells++
			}
		}
	}
	if zeroCells != 8 {
		t.Fatalf("image 0: got %d zero cells, want 8", zeroCells)
	}
}

func TestRestore_StrictVerifiesFragmentCIDs(t *testing.T) {
	want := []model.RawImage{pattern(4, 4, 0), pattern(4, 4, 1)}
	opts := strictOptions()
	opts.RecordFragmentCIDs = true
	res, err := Fragment(context.Background(), rawImages(want...), testConfig(t, 2, false), opts)
	if err != nil {
		t.Fatalf("Fragment: %v", err)
	}
	if len(res.Manifest.Fragments) != 2 || res.Manifest.Fragments[0] == "" {
		t.Fatalf("fragment CIDs not recorded: %v", res.Manifest.Fragments)
	}

	got, err := Restore(context.Background(), Pieces(res.Fragments), res.Manifest, opts)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	requireSameImages(t, got, want)

	swapped := Pieces([][]byte{res.Fragments[1], res.Fragments[0]})
	_, err = Restore(context.Background(), swapped, res.Manifest, opts)
	requireKind(t, err, model.KindIntegrity)

	img, err := codec.Decode(res.Fragments[0])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	decoded := []Piece{PieceImage(img), PieceBytes(res.Fragments[1])}
	_, err = Restore(context.Background(), decoded, res.Manifest, opts)
	requireKind(t, err, model.KindIntegrity)

	// Permissive mode does not check recorded CIDs.
	if _, err := Restore(context.Background(), swapped, res.Manifest, testOptions()); err != nil {
		t.Fatalf("permissive Restore: %v", err)
	}
}

func TestRestore_VersionPolicy(t *testing.T) {
	res, err := Fragment(context.Background(), rawImages(pattern(4, 4, 0)), testConfig(t, 2, false), testOptions())
	if err != nil {
		t.Fatalf("Fragment: %v", err)
	}
	minor := res.Manifest.Clone()
	minor.Version = "1.4.0"
	if _, err := Restore(context.Background(), Pieces(res.Fragments), minor, testOptions()); err != nil {
		t.Fatalf("permissive minor version: %v", err)
	}
	_, err = Restore(context.Background(), Pieces(res.Fragments), minor, strictOptions())
	requireKind(t, err, model.KindManifest)

	major := res.Manifest.Clone()
	major.Version = "2.0.0"
	_, err = Restore(context.Background(), Pieces(res.Fragments), major, testOptions())
	requireKind(t, err, model.KindManifest)
}

func TestRestoreOne(t *testing.T) {
	want := []model.RawImage{pattern(5, 5, 0), pattern(8, 3, 1)}
	cfg := testConfig(t, 2, false)
	res, err := Fragment(context.Background(), rawImages(want...), cfg, testOptions())
	if err != nil {
		t.Fatalf("Fragment: %v", err)
	}
	for i := range want {
		got, err := RestoreOne(PieceBytes(res.Fragments[i]), res.Manifest.Images[i], cfg.BlockSize, cfg.Seed)
		if err != nil {
			t.Fatalf("RestoreOne %d: %v", i, err)
		}
		requireSameImages(t, []model.RawImage{got}, want[i:i+1])
	}

	_, err = RestoreOne(PieceBytes(res.Fragments[0]), res.Manifest.Images[0], 0, cfg.Seed)
	requireKind(t, err, model.KindConfig)
	_, err = RestoreOne(PieceBytes(res.Fragments[0]), res.Manifest.Images[0], 2, shuffle.Seed{})
	requireKind(t, err, model.KindConfig)
	_, err = RestoreOne(PieceBytes([]byte("nope")), res.Manifest.Images[0], 2, cfg.Seed)
	requireKind(t, err, model.KindCodec)
}

func TestRestoreEncoded_UsesOutputOptions(t *testing.T) {
	cfg, err := manifest.ResolveConfig(manifest.Options{
		Seed:        shuffle.NumericSeed(7),
		Format:      manifest.FormatJPEG,
		JPEGQuality: manifest.QualityValue(95),
	})
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}
	res, err := Fragment(context.Background(), rawImages(pattern(8, 8, 0)), cfg, testOptions())
	if err != nil {
		t.Fatalf("Fragment: %v", err)
	}
	// Fragments stay lossless PNG whatever the output format.
	if !bytes.HasPrefix(res.Fragments[0], []byte("\x89PNG")) {
		t.Fatalf("fragment is not PNG")
	}
	out, err := RestoreEncoded(context.Background(), Pieces(res.Fragments), res.Manifest, testOptions())
	if err != nil {
		t.Fatalf("RestoreEncoded: %v", err)
	}
	if !bytes.HasPrefix(out[0], []byte{0xFF, 0xD8}) {
		t.Fatalf("restored image is not JPEG")
	}
}

func writePNG(t *testing.T, path string, r model.RawImage) {
	t.Helper()
	data, err := codec.Encode(r, manifest.OutputOptions{Format: manifest.FormatPNG, Channels: 4, PNGCompressionLevel: 6})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestFragmentFiles_RestoreFiles(t *testing.T) {
	in := t.TempDir()
	want := []model.RawImage{pattern(7, 5, 0), pattern(4, 9, 1)}
	inputs := []string{filepath.Join(in, "a.png"), filepath.Join(in, "b.png")}
	for i, p := range inputs {
		writePNG(t, p, want[i])
	}

	cfg, err := manifest.ResolveConfig(manifest.Options{Seed: shuffle.NumericSeed(99), PreserveName: true, CrossImageShuffle: true})
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}
	fragDir := filepath.Join(t.TempDir(), "fragments")
	if _, err := FragmentFiles(context.Background(), inputs, fragDir, cfg, testOptions()); err != nil {
		t.Fatalf("FragmentFiles: %v", err)
	}

	entries, err := os.ReadDir(fragDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	wantNames := []string{"img_1_fragmented.png", "img_2_fragmented.png", "manifest.json"}
	if len(names) != len(wantNames) {
		t.Fatalf("files: got %v want %v", names, wantNames)
	}
	for i := range names {
		if names[i] != wantNames[i] {
			t.Fatalf("files: got %v want %v", names, wantNames)
		}
	}

	outDir := t.TempDir()
	paths, err := RestoreFiles(context.Background(),
		[]string{filepath.Join(fragDir, "img_1_fragmented.png"), filepath.Join(fragDir, "img_2_fragmented.png")},
		filepath.Join(fragDir, manifest.JSONFileName), outDir, testOptions())
	if err != nil {
		t.Fatalf("RestoreFiles: %v", err)
	}
	wantPaths := []string{filepath.Join(outDir, "a.png"), filepath.Join(outDir, "b.png")}
	for i, p := range paths {
		if p != wantPaths[i] {
			t.Fatalf("path %d: got %s want %s", i, p, wantPaths[i])
		}
		data, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		got, err := codec.Decode(data)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		requireSameImages(t, []model.RawImage{got}, want[i:i+1])
	}
}

func TestRestoreFiles_CountMismatch(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), pattern(4, 4, 0))
	cfg := testConfig(t, 2, false)
	if _, err := FragmentFiles(context.Background(), []string{filepath.Join(dir, "a.png")}, dir, cfg, testOptions()); err != nil {
		t.Fatalf("FragmentFiles: %v", err)
	}
	frag := filepath.Join(dir, "img_1_fragmented.png")
	_, err := RestoreFiles(context.Background(), []string{frag, frag}, filepath.Join(dir, manifest.JSONFileName), t.TempDir(), testOptions())
	requireKind(t, err, model.KindCountMismatch)
}

func TestWriteRestored_KeepsNamesInsideOutDir(t *testing.T) {
	cfg, err := manifest.ResolveConfig(manifest.Options{Seed: shuffle.NumericSeed(1), PreserveName: true})
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}
	m, err := manifest.Build(cfg, []manifest.ImageInfo{
		{W: 1, H: 1, Name: manifest.EncodeName("../../escape")},
		{W: 1, H: 1, Name: manifest.EncodeName("..")},
	}, manifest.BuildOptions{ID: testManifestID})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	outDir := t.TempDir()
	paths, err := WriteRestored(outDir, m, [][]byte{[]byte("a"), []byte("b")}, testOptions())
	if err != nil {
		t.Fatalf("WriteRestored: %v", err)
	}
	for _, p := range paths {
		if filepath.Dir(p) != outDir {
			t.Fatalf("%s escapes %s", p, outDir)
		}
	}
}

func TestStoreLoad(t *testing.T) {
	cas, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New: %v", err)
	}
	want := []model.RawImage{pattern(6, 5, 0), pattern(3, 3, 1)}
	res, err := Fragment(context.Background(), rawImages(want...), testConfig(t, 2, true), testOptions())
	if err != nil {
		t.Fatalf("Fragment: %v", err)
	}
	stored, err := Store(cas, res)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if len(res.Manifest.Fragments) != 0 {
		t.Fatalf("Store modified the input manifest")
	}
	wantID, err := manifest.CID(stored.Manifest)
	if err != nil {
		t.Fatalf("CID: %v", err)
	}
	if !stored.ManifestCID.Equals(wantID) {
		t.Fatalf("manifest CID: got %s want %s", stored.ManifestCID, wantID)
	}

	m, frags, err := Load(cas, stored.ManifestCID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, err := Restore(context.Background(), frags, m, strictOptions())
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	requireSameImages(t, got, want)

	if _, _, err := Load(cas, stored.Fragments[0]); err == nil {
		t.Fatalf("expected error loading a fragment as a manifest")
	}
	if _, err := Store(nil, res); !errors.Is(err, ErrMissingCAS) {
		t.Fatalf("expected ErrMissingCAS, got %v", err)
	}
}

func TestLoad_ManifestWithoutFragmentCIDs(t *testing.T) {
	cas, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New: %v", err)
	}
	res, err := Fragment(context.Background(), rawImages(pattern(2, 2, 0)), testConfig(t, 2, false), testOptions())
	if err != nil {
		t.Fatalf("Fragment: %v", err)
	}
	b, err := manifest.CanonicalBytes(res.Manifest)
	if err != nil {
		t.Fatalf("CanonicalBytes: %v", err)
	}
	id, err := cas.Put(b)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	_, _, err = Load(cas, id)
	requireKind(t, err, model.KindManifest)

	missing, err := manifest.CID(testManifestFor(t))
	if err != nil {
		t.Fatalf("CID: %v", err)
	}
	if _, _, err := Load(cas, missing); !storage.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func testManifestFor(t *testing.T) *manifest.Manifest {
	t.Helper()
	m, err := manifest.Build(testConfig(t, 3, false), []manifest.ImageInfo{{W: 9, H: 9}}, manifest.BuildOptions{ID: testManifestID})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return m
}
