package model

import "fmt"

// Channels is the number of bytes per pixel in every raster handled by the
// engine (8-bit RGBA, non-premultiplied).
const Channels = 4

// ImageDimensions is the pixel size of an image. Both values are >= 1.
type ImageDimensions struct {
	Width  int `json:"w"`
	Height int `json:"h"`
}

// RawImage is a decoded RGBA raster.
//
// Pix holds Width*Height*Channels bytes in row-major order with no row padding.
type RawImage struct {
	Pix    []byte
	Width  int
	Height int
}

// NewRawImage allocates a zero-filled raster.
func NewRawImage(width, height int) RawImage {
	return RawImage{Pix: make([]byte, width*height*Channels), Width: width, Height: height}
}

func (r RawImage) Dimensions() ImageDimensions {
	return ImageDimensions{Width: r.Width, Height: r.Height}
}

// Validate checks that the raster is at least 1x1 and that Pix has exactly
// the expected length.
func (r RawImage) Validate() error {
	if r.Width < 1 || r.Height < 1 {
		return Errorf(KindConfig, "", "image dimensions must be at least 1x1, got %dx%d", r.Width, r.Height)
	}
	if want := r.Width * r.Height * Channels; len(r.Pix) != want {
		return Errorf(KindConfig, "", "raster length mismatch: got %d bytes, want %d", len(r.Pix), want)
	}
	return nil
}

func (d ImageDimensions) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}
