package engine

import (
	"context"
	"fmt"

	"xdao.co/pixzle/block"
	"xdao.co/pixzle/cidutil"
	"xdao.co/pixzle/codec"
	"xdao.co/pixzle/distribute"
	"xdao.co/pixzle/manifest"
	"xdao.co/pixzle/model"
	"xdao.co/pixzle/shuffle"
	"xdao.co/pixzle/source"
)

// Image is one input to Fragment.
type Image struct {
	Source source.Source
	// Name overrides Source.Name() when names are preserved.
	Name string
}

// Images wraps sources as Fragment inputs.
func Images(sources ...source.Source) []Image {
	out := make([]Image, len(sources))
	for i, s := range sources {
		out[i] = Image{Source: s}
	}
	return out
}

func (img Image) name() string {
	if img.Name != "" {
		return img.Name
	}
	if img.Source == nil {
		return ""
	}
	return img.Source.Name()
}

// Result is the output of Fragment: one encoded fragment per input image,
// in input order, and the manifest that inverts them.
type Result struct {
	Manifest  *manifest.Manifest
	Fragments [][]byte
}

type splitImage struct {
	dims   model.ImageDimensions
	blocks [][]byte
}

// Fragment splits images into blocks, permutes them with cfg.Seed and packs
// them into len(images) fragment images.
//
// cfg is expected to come from manifest.ResolveConfig. Any failure fails the
// whole call.
func Fragment(ctx context.Context, images []Image, cfg manifest.Config, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	const op = "fragment"

	if len(images) == 0 {
		return nil, model.NewError(model.KindConfig, op, "at least one image is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	names := make([]manifest.ImageInfo, len(images))
	for i, img := range images {
		if img.Source == nil {
			return nil, model.Errorf(model.KindUnsupportedSource, op, "image %d has no source", i)
		}
		if name := img.name(); cfg.PreserveName && name != "" {
			names[i].Name = manifest.EncodeName(name)
		}
	}
	if err := manifest.ValidateFileNames(names, cfg.PreserveName); err != nil {
		return nil, err
	}

	bs := cfg.BlockSize
	split := make([]splitImage, len(images))
	err := forEach(ctx, len(images), opts.Workers, func(ctx context.Context, i int) error {
		raw, err := images[i].Source.Load(ctx)
		if err != nil {
			return fmt.Errorf("load image %d: %w", i, err)
		}
		if err := raw.Validate(); err != nil {
			return fmt.Errorf("load image %d: %w", i, err)
		}
		blocks := block.SplitImage(raw, bs)
		split[i] = splitImage{dims: raw.Dimensions(), blocks: blocks}
		opts.Logger.Debug("split image", "index", i, "width", raw.Width, "height", raw.Height, "blocks", len(blocks))
		return nil
	})
	if err != nil {
		return nil, err
	}

	infos := make([]manifest.ImageInfo, len(split))
	dims := make([]model.ImageDimensions, len(split))
	var all [][]byte
	for i, s := range split {
		infos[i] = manifest.ImageInfo{W: s.dims.Width, H: s.dims.Height, Name: names[i].Name}
		dims[i] = s.dims
		all = append(all, s.blocks...)
	}

	m, err := manifest.Build(cfg, infos, manifest.BuildOptions{ID: opts.ManifestID, Now: opts.Now})
	if err != nil {
		return nil, err
	}

	perImage := distribute.CountsPerImage(dims, bs)
	var shuffled [][]byte
	var counts []int
	if cfg.CrossImageShuffle {
		shuffled = shuffle.Shuffle(all, cfg.Seed)
		counts, err = distribute.CountsForCrossImages(len(all), len(images))
		if err != nil {
			return nil, err
		}
	} else {
		shuffled = distribute.ApplyPerSlice(all, perImage, cfg.Seed, shuffle.Shuffle[[]byte])
		counts = perImage
	}

	out := cfg.Output.FragmentOutput()
	fragments := make([][]byte, len(images))
	err = forEach(ctx, len(images), opts.Workers, func(ctx context.Context, i int) error {
		start, end := distribute.Range(counts, i)
		blocks := shuffled[start:end]
		layout := distribute.LayoutFor(len(blocks), bs)
		raster := block.AssembleImage(blocks, layout.Width, layout.Height, bs)
		data, err := codec.Encode(raster, out)
		if err != nil {
			return fmt.Errorf("encode fragment %d: %w", i, err)
		}
		fragments[i] = data
		opts.Logger.Debug("encoded fragment", "index", i, "blocks", len(blocks), "width", layout.Width, "height", layout.Height, "bytes", len(data))
		return nil
	})
	if err != nil {
		return nil, err
	}

	if opts.RecordFragmentCIDs {
		m.Fragments = make([]string, len(fragments))
		for i, f := range fragments {
			id, err := cidutil.Sum(f)
			if err != nil {
				return nil, fmt.Errorf("fragment %d cid: %w", i, err)
			}
			m.Fragments[i] = id.String()
		}
	}

	opts.Logger.Debug("fragmented images", "manifest", m.ID, "images", len(images), "blocks", len(all), "cross_image", cfg.CrossImageShuffle)
	return &Result{Manifest: m, Fragments: fragments}, nil
}
