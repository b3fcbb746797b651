// Package codec converts between encoded image bytes and RGBA rasters.
//
// Decoding accepts PNG, JPEG, GIF, BMP, TIFF and QOI. Encoding writes PNG or
// JPEG according to manifest.OutputOptions. JPEG output and 3-channel output
// composite alpha onto black.
package codec

import (
	"bufio"
	"bytes"
	"image"
	"image/png"
	"io"

	"github.com/disintegration/imaging"
	"github.com/xfmoulet/qoi"

	"xdao.co/pixzle/manifest"
	"xdao.co/pixzle/model"
)

// MismatchHint is appended to decode errors raised while restoring.
const MismatchHint = "the manifest may not match the image data"

var qoiMagic = []byte("qoif")

// Decode decodes data into an RGBA raster.
func Decode(data []byte) (model.RawImage, error) {
	return DecodeReader(bytes.NewReader(data))
}

// DecodeReader is Decode over a stream. The format is sniffed without
// buffering the whole input.
func DecodeReader(r io.Reader) (model.RawImage, error) {
	br := bufio.NewReader(r)
	magic, _ := br.Peek(len(qoiMagic))
	img, err := decodeImage(br, bytes.Equal(magic, qoiMagic))
	if err != nil {
		return model.RawImage{}, model.WrapError(model.KindCodec, "decode image", "cannot decode image data", err)
	}
	return FromImage(img), nil
}

func decodeImage(r io.Reader, isQOI bool) (image.Image, error) {
	if isQOI {
		return qoi.Decode(r)
	}
	return imaging.Decode(r, imaging.AutoOrientation(true))
}

// FromImage copies any image.Image into a non-premultiplied RGBA raster.
func FromImage(img image.Image) model.RawImage {
	nrgba := imaging.Clone(img)
	b := nrgba.Bounds()
	return model.RawImage{Pix: nrgba.Pix, Width: b.Dx(), Height: b.Dy()}
}

// ToImage wraps a raster as *image.NRGBA without copying.
func ToImage(r model.RawImage) *image.NRGBA {
	return &image.NRGBA{
		Pix:    r.Pix,
		Stride: r.Width * model.Channels,
		Rect:   image.Rect(0, 0, r.Width, r.Height),
	}
}

// Encode writes r in the format described by out.
func Encode(r model.RawImage, out manifest.OutputOptions) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if out.Format == "" {
		out.Format = manifest.FormatPNG
	}

	src := r
	if out.Channels == 3 || out.Format == manifest.FormatJPEG {
		src = CompositeOnBlack(r)
	}

	var buf bytes.Buffer
	var err error
	switch out.Format {
	case manifest.FormatJPEG:
		err = imaging.Encode(&buf, ToImage(src), imaging.JPEG, imaging.JPEGQuality(out.JPEGQuality.Int()))
	case manifest.FormatPNG:
		err = imaging.Encode(&buf, ToImage(src), imaging.PNG, imaging.PNGCompressionLevel(PNGLevel(out.PNGCompressionLevel)))
	default:
		return nil, model.Errorf(model.KindConfig, "encode image", "unsupported output format %q", out.Format)
	}
	if err != nil {
		return nil, model.WrapError(model.KindCodec, "encode image", "cannot create "+string(out.Format), err)
	}
	return buf.Bytes(), nil
}

// PNGLevel maps a 0-9 deflate level onto the four levels image/png offers.
func PNGLevel(level int) png.CompressionLevel {
	switch {
	case level <= 0:
		return png.NoCompression
	case level <= 3:
		return png.BestSpeed
	case level <= 6:
		return png.DefaultCompression
	default:
		return png.BestCompression
	}
}

// CompositeOnBlack returns an opaque copy of r with each color channel
// scaled by alpha, rounded to nearest.
func CompositeOnBlack(r model.RawImage) model.RawImage {
	out := model.RawImage{Pix: make([]byte, len(r.Pix)), Width: r.Width, Height: r.Height}
	for i := 0; i+model.Channels <= len(r.Pix); i += model.Channels {
		a := int(r.Pix[i+3])
		for c := 0; c < 3; c++ {
			out.Pix[i+c] = byte((2*int(r.Pix[i+c])*a + 255) / 510)
		}
		out.Pix[i+3] = 0xff
	}
	return out
}
