package main

import (
	"context"
	"fmt"
	"io"

	"xdao.co/pixzle/engine"
	"xdao.co/pixzle/manifest"
	"xdao.co/pixzle/shuffle"
)

func cmdShuffle(args []string, out io.Writer, errOut io.Writer) int {
	fs, c := newFlagSet("shuffle", errOut)

	var outDir, prefix, seed, format, jpegQuality string
	var blockSize, channels, pngCompression, workers int
	var preserveName, crossImage, recordCIDs bool

	fs.StringVarP(&outDir, "output", "o", "", "Output directory")
	fs.IntVarP(&blockSize, "block-size", "b", 0, "Pixel block size (default 2)")
	fs.StringVarP(&prefix, "prefix", "p", "", "Prefix for fragment files (default img)")
	fs.StringVarP(&seed, "seed", "s", "", "Shuffle seed (integer or text; random when omitted)")
	fs.BoolVar(&preserveName, "preserve-name", false, "Preserve original file names")
	fs.BoolVar(&crossImage, "cross-image-shuffle", false, "Shuffle blocks across all images instead of within each image")
	fs.StringVarP(&format, "format", "f", "", "Restored output format: png (default) or jpeg")
	fs.IntVarP(&channels, "channels", "c", 0, "Restored color channels: 4=RGBA (default), 3=RGB")
	fs.StringVar(&jpegQuality, "jpeg-quality", "", "JPEG quality: low, normal (default), high, or 0-100")
	fs.IntVar(&pngCompression, "png-compression", 6, "PNG compression level 0-9")
	fs.BoolVar(&recordCIDs, "record-cids", false, "Record each fragment's CID in the manifest")
	fs.IntVar(&workers, "workers", 0, "Parallel image workers (default GOMAXPROCS)")

	if err := fs.Parse(args); err != nil {
		return parseExit(err)
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(errOut, "usage: pixzle shuffle <images...> -o <dir>")
		return 2
	}
	if outDir == "" {
		fmt.Fprintln(errOut, "missing --output")
		return 2
	}

	cfg, logger, err := c.setup(errOut)
	if err != nil {
		fmt.Fprintf(errOut, "config: %v\n", err)
		return 2
	}
	opts, err := cfg.ManifestOptions()
	if err != nil {
		fmt.Fprintf(errOut, "config: %v\n", err)
		return 2
	}

	// Flags win over the config file.
	if fs.Changed("block-size") {
		if blockSize <= 0 {
			fmt.Fprintln(errOut, "invalid --block-size: must be a positive integer")
			return 2
		}
		opts.BlockSize = blockSize
	}
	if fs.Changed("prefix") {
		opts.Prefix = prefix
	}
	if fs.Changed("seed") {
		opts.Seed = shuffle.ParseSeed(seed)
	}
	if fs.Changed("preserve-name") {
		opts.PreserveName = preserveName
	}
	if fs.Changed("cross-image-shuffle") {
		opts.CrossImageShuffle = crossImage
	}
	if fs.Changed("format") {
		f, err := manifest.ParseFormat(format)
		if err != nil {
			fmt.Fprintf(errOut, "invalid --format: %v\n", err)
			return 2
		}
		opts.Format = f
	}
	if fs.Changed("channels") {
		opts.Channels = channels
	}
	if fs.Changed("jpeg-quality") {
		q, err := manifest.ParseQuality(jpegQuality)
		if err != nil {
			fmt.Fprintf(errOut, "invalid --jpeg-quality: %v\n", err)
			return 2
		}
		opts.JPEGQuality = q
	}
	if fs.Changed("png-compression") {
		opts.PNGCompressionLevel = &pngCompression
	}
	if !fs.Changed("workers") {
		workers = cfg.Fragment.Workers
	}

	resolved, err := manifest.ResolveConfig(opts)
	if err != nil {
		fmt.Fprintf(errOut, "invalid options: %v\n", err)
		return 2
	}

	res, err := engine.FragmentFiles(context.Background(), fs.Args(), outDir, resolved, engine.Options{
		Logger:             logger,
		Workers:            workers,
		RecordFragmentCIDs: recordCIDs || cfg.Fragment.RecordCIDs,
	})
	if err != nil {
		fmt.Fprintf(errOut, "shuffle: %v\n", err)
		return 1
	}
	logger.Info("fragmented images", "count", len(res.Fragments), "output", outDir, "manifest", manifest.JSONFileName)
	fmt.Fprintln(out, outDir)
	return 0
}
