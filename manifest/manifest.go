package manifest

import (
	"time"

	"github.com/google/uuid"

	"xdao.co/pixzle/model"
)

// Version is the manifest schema version written by this package.
const Version = "1.0.0"

// JSONFileName is the conventional file name of a manifest next to its
// fragments.
const JSONFileName = "manifest.json"

// TimestampLayout is ISO-8601 UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// ImageInfo records one source image.
type ImageInfo struct {
	W int `json:"w"`
	H int `json:"h"`
	// Name is the base64 form of the original name, present only when
	// names are preserved.
	Name string `json:"name,omitempty"`
}

func (i ImageInfo) Dimensions() model.ImageDimensions {
	return model.ImageDimensions{Width: i.W, Height: i.H}
}

// Manifest is everything needed to invert a fragmentation.
//
// len(Images) is both the number of source images and the number of
// fragments. Fragments, when present, holds the CID of each fragment's
// encoded bytes in fragment order.
type Manifest struct {
	ID        string      `json:"id"`
	Version   string      `json:"version"`
	Timestamp string      `json:"timestamp"`
	Config    Config      `json:"config"`
	Images    []ImageInfo `json:"images"`
	Fragments []string    `json:"fragments,omitempty"`
}

// BuildOptions overrides the generated parts of a manifest. Zero values
// mean generate.
type BuildOptions struct {
	ID  string
	Now func() time.Time
}

// Build assembles a manifest for already-resolved cfg and images. It
// rejects duplicate preserved names.
func Build(cfg Config, images []ImageInfo, opts BuildOptions) (*Manifest, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateFileNames(images, cfg.PreserveName); err != nil {
		return nil, err
	}

	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	return &Manifest{
		ID:        id,
		Version:   Version,
		Timestamp: now().UTC().Format(TimestampLayout),
		Config:    cfg,
		Images:    append([]ImageInfo(nil), images...),
	}, nil
}

// Dimensions returns the size of every image in order.
func (m *Manifest) Dimensions() []model.ImageDimensions {
	dims := make([]model.ImageDimensions, len(m.Images))
	for i, img := range m.Images {
		dims[i] = img.Dimensions()
	}
	return dims
}

// Clone returns a deep copy.
func (m *Manifest) Clone() *Manifest {
	c := *m
	c.Images = append([]ImageInfo(nil), m.Images...)
	if m.Fragments != nil {
		c.Fragments = append([]string(nil), m.Fragments...)
	}
	return &c
}
