// Package source resolves the ways an input image can be supplied into a
// decoded raster. The set of variants is closed: FilePath, URL, Bytes,
// Decoded and Raw.
package source

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"xdao.co/pixzle/codec"
	"xdao.co/pixzle/model"
)

// Source produces one decoded image.
type Source interface {
	Load(ctx context.Context) (model.RawImage, error)
	// Name is the original name without extension, or "" when unknown.
	Name() string
}

// FilePath is an image file on the local filesystem.
type FilePath string

func (p FilePath) Load(ctx context.Context) (model.RawImage, error) {
	if err := ctx.Err(); err != nil {
		return model.RawImage{}, err
	}
	data, err := os.ReadFile(string(p))
	if err != nil {
		return model.RawImage{}, fmt.Errorf("read %s: %w", p, err)
	}
	img, err := codec.Decode(data)
	if err != nil {
		return model.RawImage{}, fmt.Errorf("%s: %w", p, err)
	}
	return img, nil
}

func (p FilePath) Name() string { return stripExt(filepath.Base(string(p))) }

// MaxURLBytes bounds the size of a fetched image.
const MaxURLBytes = 256 << 20

// URL is an image fetched over HTTP(S).
type URL struct {
	Location string
	// Client defaults to http.DefaultClient.
	Client *http.Client
}

func (u URL) Load(ctx context.Context) (model.RawImage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.Location, nil)
	if err != nil {
		return model.RawImage{}, fmt.Errorf("fetch %s: %w", u.Location, err)
	}
	client := u.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return model.RawImage{}, fmt.Errorf("fetch %s: %w", u.Location, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return model.RawImage{}, fmt.Errorf("fetch %s: unexpected status %s", u.Location, resp.Status)
	}
	img, err := codec.DecodeReader(&capReader{r: resp.Body, n: MaxURLBytes})
	if errors.Is(err, errTooLarge) {
		return model.RawImage{}, fmt.Errorf("fetch %s: image exceeds %d bytes", u.Location, MaxURLBytes)
	}
	if err != nil {
		return model.RawImage{}, fmt.Errorf("%s: %w", u.Location, err)
	}
	return img, nil
}

var errTooLarge = errors.New("source: image too large")

// capReader fails once more than n bytes have been read.
type capReader struct {
	r io.Reader
	n int64
}

func (c *capReader) Read(p []byte) (int, error) {
	if c.n < 0 {
		return 0, errTooLarge
	}
	if int64(len(p)) > c.n+1 {
		p = p[:c.n+1]
	}
	n, err := c.r.Read(p)
	c.n -= int64(n)
	if c.n < 0 {
		return n, errTooLarge
	}
	return n, err
}

func (u URL) Name() string {
	parsed, err := url.Parse(u.Location)
	if err != nil {
		return ""
	}
	base := path.Base(parsed.Path)
	if base == "/" || base == "." {
		return ""
	}
	return stripExt(base)
}

// Bytes is an encoded image held in memory.
type Bytes struct {
	Data     []byte
	Filename string
}

func (b Bytes) Load(ctx context.Context) (model.RawImage, error) {
	if err := ctx.Err(); err != nil {
		return model.RawImage{}, err
	}
	return codec.Decode(b.Data)
}

func (b Bytes) Name() string { return stripExt(b.Filename) }

// Decoded is an image already decoded by the caller.
type Decoded struct {
	Image    image.Image
	Filename string
}

func (d Decoded) Load(ctx context.Context) (model.RawImage, error) {
	if d.Image == nil {
		return model.RawImage{}, model.NewError(model.KindUnsupportedSource, "load image", "decoded source has no image")
	}
	return codec.FromImage(d.Image), nil
}

func (d Decoded) Name() string { return stripExt(d.Filename) }

// Raw is an RGBA raster supplied as is.
type Raw struct {
	Image    model.RawImage
	Filename string
}

func (r Raw) Load(ctx context.Context) (model.RawImage, error) {
	if err := r.Image.Validate(); err != nil {
		return model.RawImage{}, err
	}
	return r.Image, nil
}

func (r Raw) Name() string { return stripExt(r.Filename) }

// Parse classifies a command-line argument: http and https URLs become URL,
// everything else a FilePath.
func Parse(s string) Source {
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return URL{Location: s}
	}
	return FilePath(s)
}

// FromValue maps a Go value onto a Source. Strings go through Parse, []byte
// becomes Bytes, image.Image becomes Decoded and model.RawImage becomes Raw.
// Anything else is rejected with KindUnsupportedSource.
func FromValue(v any) (Source, error) {
	switch x := v.(type) {
	case Source:
		return x, nil
	case string:
		return Parse(x), nil
	case []byte:
		return Bytes{Data: x}, nil
	case image.Image:
		return Decoded{Image: x}, nil
	case model.RawImage:
		return Raw{Image: x}, nil
	case *model.RawImage:
		if x != nil {
			return Raw{Image: *x}, nil
		}
	}
	return nil, model.Errorf(model.KindUnsupportedSource, "resolve image source", "unsupported image source type %T", v)
}

func stripExt(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
