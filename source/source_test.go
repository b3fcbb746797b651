package source

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"xdao.co/pixzle/codec"
	"xdao.co/pixzle/manifest"
	"xdao.co/pixzle/model"
)

func encodedPNG(t *testing.T, w, h int) ([]byte, model.RawImage) {
	t.Helper()
	r := model.NewRawImage(w, h)
	for i := range r.Pix {
		r.Pix[i] = byte(i + 1)
	}
	data, err := codec.Encode(r, manifest.OutputOptions{Format: manifest.FormatPNG, Channels: 4, PNGCompressionLevel: 6})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return data, r
}

func TestFilePath(t *testing.T) {
	data, want := encodedPNG(t, 3, 2)
	p := filepath.Join(t.TempDir(), "photo.final.png")
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	src := FilePath(p)
	if src.Name() != "photo.final" {
		t.Fatalf("Name() = %q", src.Name())
	}
	got, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(got.Pix, want.Pix) {
		t.Fatalf("pixels differ")
	}

	if _, err := FilePath(filepath.Join(t.TempDir(), "missing.png")).Load(context.Background()); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestURL(t *testing.T) {
	data, want := encodedPNG(t, 2, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/img/cat.png" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	src := URL{Location: srv.URL + "/img/cat.png", Client: srv.Client()}
	if src.Name() != "cat" {
		t.Fatalf("Name() = %q", src.Name())
	}
	got, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(got.Pix, want.Pix) {
		t.Fatalf("pixels differ")
	}

	missing := URL{Location: srv.URL + "/nope.png", Client: srv.Client()}
	if _, err := missing.Load(context.Background()); err == nil {
		t.Fatalf("expected error for 404")
	}
}

func TestCapReader(t *testing.T) {
	r := &capReader{r: strings.NewReader("abcdef"), n: 6}
	got, err := io.ReadAll(r)
	if err != nil || string(got) != "abcdef" {
		t.Fatalf("within cap: %q, %v", got, err)
	}

	r = &capReader{r: strings.NewReader("abcdefg"), n: 6}
	if _, err := io.ReadAll(r); !errors.Is(err, errTooLarge) {
		t.Fatalf("over cap: expected errTooLarge, got %v", err)
	}
}

func TestBytesDecodedRaw(t *testing.T) {
	data, want := encodedPNG(t, 2, 1)
	ctx := context.Background()

	got, err := Bytes{Data: data, Filename: "a.png"}.Load(ctx)
	if err != nil || !bytes.Equal(got.Pix, want.Pix) {
		t.Fatalf("Bytes.Load: %v", err)
	}

	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 1, G: 2, B: 3, A: 4})
	got, err = Decoded{Image: img}.Load(ctx)
	if err != nil || !bytes.Equal(got.Pix, []byte{1, 2, 3, 4}) {
		t.Fatalf("Decoded.Load = %v, %v", got.Pix, err)
	}

	got, err = Raw{Image: want, Filename: "r"}.Load(ctx)
	if err != nil || got.Width != 2 {
		t.Fatalf("Raw.Load: %v", err)
	}
	if _, err := (Raw{Image: model.RawImage{Width: 2, Height: 2}}).Load(ctx); !model.IsKind(err, model.KindConfig) {
		t.Fatalf("Raw with short Pix: %v", err)
	}

	if _, err := (Bytes{Data: []byte("junk")}).Load(ctx); !model.IsKind(err, model.KindCodec) {
		t.Fatalf("Bytes junk: %v", err)
	}
}

func TestParse(t *testing.T) {
	if _, ok := Parse("https://example.com/x.png").(URL); !ok {
		t.Fatalf("https should be URL")
	}
	if _, ok := Parse("HTTP://example.com/x.png").(URL); !ok {
		t.Fatalf("HTTP should be URL")
	}
	if _, ok := Parse("./images/x.png").(FilePath); !ok {
		t.Fatalf("relative path should be FilePath")
	}
}

func TestFromValue(t *testing.T) {
	for _, v := range []any{"a.png", []byte{1}, image.NewGray(image.Rect(0, 0, 1, 1)), model.NewRawImage(1, 1), FilePath("x")} {
		if _, err := FromValue(v); err != nil {
			t.Fatalf("FromValue(%T): %v", v, err)
		}
	}
	for _, v := range []any{42, nil, struct{}{}, (*model.RawImage)(nil)} {
		_, err := FromValue(v)
		if !model.IsKind(err, model.KindUnsupportedSource) {
			t.Fatalf("FromValue(%T): expected UnsupportedSource, got %v", v, err)
		}
	}
}
