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
)

// Piece is one fragment image handed to Restore: either its encoded bytes
// or an already-decoded raster.
type Piece struct {
	Data  []byte
	Image *model.RawImage
}

// PieceBytes wraps encoded fragment bytes.
func PieceBytes(data []byte) Piece { return Piece{Data: data} }

// PieceImage wraps a decoded fragment.
func PieceImage(img model.RawImage) Piece { return Piece{Image: &img} }

// Pieces wraps each encoded fragment.
func Pieces(data [][]byte) []Piece {
	out := make([]Piece, len(data))
	for i, d := range data {
		out[i] = PieceBytes(d)
	}
	return out
}

func (f Piece) decode() (model.RawImage, error) {
	if f.Image != nil {
		return *f.Image, nil
	}
	return codec.Decode(f.Data)
}

// Restore inverts Fragment. fragments must be in manifest order.
//
// The fragment count is checked against the manifest before anything is
// decoded. In permissive mode a fragment that yields fewer blocks than
// expected is padded with empty blocks: the cells they belong to come back
// zeroed and every other image is unaffected. Strict mode rejects it.
func Restore(ctx context.Context, fragments []Piece, m *manifest.Manifest, opts Options) ([]model.RawImage, error) {
	opts = opts.withDefaults()
	const op = "restore"

	if m == nil {
		return nil, model.NewError(model.KindConfig, op, "manifest is required")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := manifest.ValidateVersion(m, opts.strict()); err != nil {
		return nil, err
	}
	if err := manifest.ValidateFragmentCount(len(fragments), m); err != nil {
		return nil, err
	}
	if opts.strict() && len(m.Fragments) > 0 {
		if err := verifyFragmentCIDs(fragments, m.Fragments); err != nil {
			return nil, err
		}
	}

	bs := m.Config.BlockSize
	dims := m.Dimensions()
	perImage := distribute.CountsPerImage(dims, bs)
	counts := perImage
	if m.Config.CrossImageShuffle {
		var err error
		counts, err = distribute.CountsForCrossImages(distribute.TotalBlocks(dims, bs), len(fragments))
		if err != nil {
			return nil, err
		}
	}

	groups := make([][][]byte, len(fragments))
	err := forEach(ctx, len(fragments), opts.Workers, func(ctx context.Context, i int) error {
		raster, err := fragments[i].decode()
		if err != nil {
			return model.WrapError(model.KindCodec, fmt.Sprintf("decode fragment %d", i), codec.MismatchHint, err)
		}
		blocks := distribute.Take(block.SplitImage(raster, bs), counts[i])
		if len(blocks) < counts[i] {
			if opts.strict() {
				return model.Errorf(model.KindIntegrity, fmt.Sprintf("read fragment %d", i), "fragment holds %d blocks, manifest expects %d", len(blocks), counts[i])
			}
			opts.Logger.Warn("fragment is short; missing blocks will be zero", "index", i, "blocks", len(blocks), "expected", counts[i])
			// Nil blocks keep later positions aligned and assemble as zeros.
			blocks = append(blocks, make([][]byte, counts[i]-len(blocks))...)
		}
		groups[i] = blocks
		opts.Logger.Debug("read fragment", "index", i, "width", raster.Width, "height", raster.Height, "blocks", len(blocks))
		return nil
	})
	if err != nil {
		return nil, err
	}

	var all [][]byte
	for _, g := range groups {
		all = append(all, g...)
	}
	var restored [][]byte
	if m.Config.CrossImageShuffle {
		restored = shuffle.Unshuffle(all, m.Config.Seed)
	} else {
		restored = distribute.ApplyPerSlice(all, perImage, m.Config.Seed, shuffle.Unshuffle[[]byte])
	}

	images := make([]model.RawImage, len(m.Images))
	err = forEach(ctx, len(m.Images), opts.Workers, func(ctx context.Context, i int) error {
		start, end := distribute.Range(perImage, i)
		start, end = min(start, len(restored)), min(end, len(restored))
		info := m.Images[i]
		images[i] = block.AssembleImage(restored[start:end], info.W, info.H, bs)
		opts.Logger.Debug("restored image", "index", i, "width", info.W, "height", info.H, "blocks", end-start)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return images, nil
}

// RestoreEncoded is Restore followed by encoding each image with the
// manifest's output options.
func RestoreEncoded(ctx context.Context, fragments []Piece, m *manifest.Manifest, opts Options) ([][]byte, error) {
	opts = opts.withDefaults()
	images, err := Restore(ctx, fragments, m, opts)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(images))
	err = forEach(ctx, len(images), opts.Workers, func(ctx context.Context, i int) error {
		data, err := codec.Encode(images[i], m.Config.Output)
		if err != nil {
			return fmt.Errorf("encode restored image %d: %w", i, err)
		}
		out[i] = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RestoreOne restores a single image from its own fragment. It applies only
// to per-image shuffles, where each fragment carries exactly the blocks of
// one image.
func RestoreOne(fragment Piece, info manifest.ImageInfo, blockSize int, seed shuffle.Seed) (model.RawImage, error) {
	const op = "restore image"
	if blockSize <= 0 {
		return model.RawImage{}, model.Errorf(model.KindConfig, op, "block size must be a positive integer, got %d", blockSize)
	}
	if seed.IsZero() {
		return model.RawImage{}, model.NewError(model.KindConfig, op, "seed is required")
	}
	if info.W < 1 || info.H < 1 {
		return model.RawImage{}, model.Errorf(model.KindConfig, op, "invalid image dimensions %dx%d", info.W, info.H)
	}
	raster, err := fragment.decode()
	if err != nil {
		return model.RawImage{}, model.WrapError(model.KindCodec, op, codec.MismatchHint, err)
	}
	blocks := distribute.ExtractExpected(block.SplitImage(raster, blockSize), info.W, info.H, blockSize)
	return block.AssembleImage(shuffle.Unshuffle(blocks, seed), info.W, info.H, blockSize), nil
}

func verifyFragmentCIDs(fragments []Piece, cids []string) error {
	for i, f := range fragments {
		op := fmt.Sprintf("verify fragment %d", i)
		if f.Data == nil {
			return model.NewError(model.KindIntegrity, op, "decoded fragments cannot be checked against recorded CIDs")
		}
		ok, err := cidutil.MatchesString(f.Data, cids[i])
		if err != nil {
			return model.WrapError(model.KindIntegrity, op, "invalid recorded CID", err)
		}
		if !ok {
			return model.Errorf(model.KindIntegrity, op, "fragment bytes do not match recorded CID %s", cids[i])
		}
	}
	return nil
}
