package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ipfs/go-cid"

	"xdao.co/pixzle/compliance"
	"xdao.co/pixzle/engine"
	"xdao.co/pixzle/manifest"
	"xdao.co/pixzle/storage/bundle"
)

func cmdRestore(args []string, out io.Writer, errOut io.Writer) int {
	fs, c := newFlagSet("restore", errOut)
	seal := addSealFlags(fs)
	store := addStorageFlags(fs)

	var manifestPath, outDir, mode, bundlePath, manifestCID string
	var workers int

	fs.StringVarP(&manifestPath, "manifest", "m", "", "Manifest file (JSON, CBOR or sealed)")
	fs.StringVarP(&outDir, "output", "o", "", "Output directory")
	fs.StringVar(&mode, "mode", "", "Compliance mode: permissive or strict (default from config, else permissive)")
	fs.StringVar(&bundlePath, "bundle", "", "Restore from a bundle archive instead of files")
	fs.StringVar(&manifestCID, "cid", "", "Restore from the CAS by manifest CID instead of files")
	fs.IntVar(&workers, "workers", 0, "Parallel image workers (default GOMAXPROCS)")

	if err := fs.Parse(args); err != nil {
		return parseExit(err)
	}
	if outDir == "" {
		fmt.Fprintln(errOut, "missing --output")
		return 2
	}
	sources := 0
	for _, set := range []bool{fs.NArg() > 0, bundlePath != "", manifestCID != ""} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		fmt.Fprintln(errOut, "usage: pixzle restore (<fragments...> -m <manifest> | --bundle <file> | --cid <CID>) -o <dir>")
		return 2
	}
	if fs.NArg() > 0 && manifestPath == "" {
		fmt.Fprintln(errOut, "missing --manifest")
		return 2
	}

	cfg, logger, err := c.setup(errOut)
	if err != nil {
		fmt.Fprintf(errOut, "config: %v\n", err)
		return 2
	}
	opts := engine.Options{Logger: logger, Workers: cfg.Fragment.Workers}
	if fs.Changed("workers") {
		opts.Workers = workers
	}
	if mode == "" {
		opts.Mode, err = cfg.Mode()
	} else {
		opts.Mode, err = compliance.Parse(mode)
	}
	if err != nil {
		fmt.Fprintf(errOut, "invalid --mode: %v\n", err)
		return 2
	}

	var m *manifest.Manifest
	var fragments []engine.Piece
	switch {
	case bundlePath != "":
		f, err := os.Open(bundlePath)
		if err != nil {
			fmt.Fprintf(errOut, "open bundle: %v\n", err)
			return 1
		}
		b, err := bundle.Import(f)
		_ = f.Close()
		if err != nil {
			fmt.Fprintf(errOut, "import bundle: %v\n", err)
			return 1
		}
		m, fragments = b.Manifest, engine.Pieces(b.Fragments)
	case manifestCID != "":
		id, err := cid.Decode(manifestCID)
		if err != nil {
			fmt.Fprintf(errOut, "invalid --cid: %v\n", err)
			return 2
		}
		cas, closeFn, err := store.open(cfg)
		if err != nil {
			fmt.Fprintf(errOut, "storage: %v\n", err)
			return 2
		}
		defer closeQuietly(closeFn)
		if m, fragments, err = engine.Load(cas, id); err != nil {
			fmt.Fprintf(errOut, "load: %v\n", err)
			return 1
		}
	default:
		if m, err = readManifest(manifestPath, seal, errOut); err != nil {
			fmt.Fprintf(errOut, "%v\n", err)
			return 1
		}
		if err := manifest.ValidateFragmentCount(fs.NArg(), m); err != nil {
			fmt.Fprintf(errOut, "restore: %v\n", err)
			return 1
		}
		fragments = make([]engine.Piece, fs.NArg())
		for i, p := range fs.Args() {
			data, err := os.ReadFile(p)
			if err != nil {
				fmt.Fprintf(errOut, "read fragment %d: %v\n", i, err)
				return 1
			}
			fragments[i] = engine.PieceBytes(data)
		}
	}

	encoded, err := engine.RestoreEncoded(context.Background(), fragments, m, opts)
	if err != nil {
		fmt.Fprintf(errOut, "restore: %v\n", err)
		return 1
	}
	paths, err := engine.WriteRestored(outDir, m, encoded, opts)
	if err != nil {
		fmt.Fprintf(errOut, "write: %v\n", err)
		return 1
	}
	logger.Info("restored images", "count", len(paths), "output", outDir, "mode", opts.Mode.String())
	for _, p := range paths {
		fmt.Fprintln(out, p)
	}
	return 0
}
