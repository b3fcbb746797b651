package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/ipfs/go-cid"

	"xdao.co/pixzle/engine"
	"xdao.co/pixzle/storage/bundle"
	"xdao.co/pixzle/storage/casregistry"
)

func cmdPut(args []string, out io.Writer, errOut io.Writer) int {
	fs, c := newFlagSet("put", errOut)
	store := addStorageFlags(fs)
	if err := fs.Parse(args); err != nil {
		return parseExit(err)
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: pixzle put <dir> (--backend <name> | --cas-config <file>)")
		return 2
	}
	cfg, logger, err := c.setup(errOut)
	if err != nil {
		fmt.Fprintf(errOut, "config: %v\n", err)
		return 2
	}
	m, fragments, err := readFragmentDir(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read: %v\n", err)
		return 1
	}
	cas, closeFn, err := store.open(cfg)
	if err != nil {
		fmt.Fprintf(errOut, "storage: %v\n", err)
		return 2
	}
	defer closeQuietly(closeFn)

	stored, err := engine.Store(cas, &engine.Result{Manifest: m, Fragments: fragments})
	if err != nil {
		fmt.Fprintf(errOut, "put: %v\n", err)
		return 1
	}
	for i, id := range stored.Fragments {
		logger.Debug("stored fragment", "index", i, "cid", id.String())
	}
	_, _ = fmt.Fprintln(out, stored.ManifestCID.String())
	return 0
}

func cmdGet(args []string, out io.Writer, errOut io.Writer) int {
	fs, c := newFlagSet("get", errOut)
	store := addStorageFlags(fs)
	var outDir string
	fs.StringVarP(&outDir, "output", "o", "", "Output directory for manifest.json and fragments")
	if err := fs.Parse(args); err != nil {
		return parseExit(err)
	}
	if fs.NArg() != 1 || outDir == "" {
		fmt.Fprintln(errOut, "usage: pixzle get <manifest CID> -o <dir> (--backend <name> | --cas-config <file>)")
		return 2
	}
	id, err := cid.Decode(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "invalid CID: %v\n", err)
		return 2
	}
	cfg, logger, err := c.setup(errOut)
	if err != nil {
		fmt.Fprintf(errOut, "config: %v\n", err)
		return 2
	}
	cas, closeFn, err := store.open(cfg)
	if err != nil {
		fmt.Fprintf(errOut, "storage: %v\n", err)
		return 2
	}
	defer closeQuietly(closeFn)

	m, fragments, err := engine.Load(cas, id)
	if err != nil {
		fmt.Fprintf(errOut, "get: %v\n", err)
		return 1
	}
	data := make([][]byte, len(fragments))
	for i, f := range fragments {
		data[i] = f.Data
	}
	if err := writeFragmentDir(outDir, m, data); err != nil {
		fmt.Fprintf(errOut, "write: %v\n", err)
		return 1
	}
	logger.Debug("fetched manifest", "cid", id.String(), "fragments", len(fragments))
	_, _ = fmt.Fprintln(out, outDir)
	return 0
}

func cmdBundle(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: pixzle bundle <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: export, import")
		return 2
	}
	switch args[0] {
	case "export":
		return cmdBundleExport(args[1:], out, errOut)
	case "import":
		return cmdBundleImport(args[1:], out, errOut)
	default:
		fmt.Fprintf(errOut, "unknown bundle subcommand: %s\n", args[0])
		return 2
	}
}

func cmdBundleExport(args []string, out io.Writer, errOut io.Writer) int {
	fs, c := newFlagSet("bundle export", errOut)
	var outPath, compression string
	fs.StringVarP(&outPath, "output", "o", "", "Bundle file")
	fs.StringVar(&compression, "compression", "", "none, zstd or lz4 (default from config, else none)")
	if err := fs.Parse(args); err != nil {
		return parseExit(err)
	}
	if fs.NArg() != 1 || outPath == "" {
		fmt.Fprintln(errOut, "usage: pixzle bundle export <dir> -o <file> [--compression none|zstd|lz4]")
		return 2
	}
	cfg, logger, err := c.setup(errOut)
	if err != nil {
		fmt.Fprintf(errOut, "config: %v\n", err)
		return 2
	}
	comp := cfg.Compression()
	if fs.Changed("compression") {
		if comp, err = bundle.ParseCompression(compression); err != nil {
			fmt.Fprintf(errOut, "invalid --compression: %v\n", err)
			return 2
		}
	}
	m, fragments, err := readFragmentDir(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read: %v\n", err)
		return 1
	}

	f, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintf(errOut, "create: %v\n", err)
		return 1
	}
	bw := bufio.NewWriter(f)
	err = bundle.Export(bw, m, fragments, bundle.ExportOptions{Compression: comp})
	if err == nil {
		err = bw.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(outPath)
		fmt.Fprintf(errOut, "export: %v\n", err)
		return 1
	}
	logger.Debug("exported bundle", "path", outPath, "compression", comp.String(), "fragments", len(fragments))
	_, _ = fmt.Fprintln(out, outPath)
	return 0
}

func cmdBundleImport(args []string, out io.Writer, errOut io.Writer) int {
	fs, c := newFlagSet("bundle import", errOut)
	var outDir string
	var ignoreUnknown bool
	fs.StringVarP(&outDir, "output", "o", "", "Output directory for manifest.json and fragments")
	fs.BoolVar(&ignoreUnknown, "ignore-unknown", false, "Skip unrecognized archive entries")
	if err := fs.Parse(args); err != nil {
		return parseExit(err)
	}
	if fs.NArg() != 1 || outDir == "" {
		fmt.Fprintln(errOut, "usage: pixzle bundle import <file> -o <dir>")
		return 2
	}
	_, logger, err := c.setup(errOut)
	if err != nil {
		fmt.Fprintf(errOut, "config: %v\n", err)
		return 2
	}
	f, err := os.Open(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "open: %v\n", err)
		return 1
	}
	defer f.Close()
	b, err := bundle.ImportWithOptions(bufio.NewReader(f), bundle.ImportOptions{IgnoreUnknown: ignoreUnknown})
	if err != nil {
		fmt.Fprintf(errOut, "import: %v\n", err)
		return 1
	}
	if err := writeFragmentDir(outDir, b.Manifest, b.Fragments); err != nil {
		fmt.Fprintf(errOut, "write: %v\n", err)
		return 1
	}
	logger.Debug("imported bundle", "compression", b.Compression.String(), "fragments", len(b.Fragments))
	_, _ = fmt.Fprintln(out, outDir)
	return 0
}

func cmdBackends(args []string, out io.Writer, errOut io.Writer) int {
	fs, _ := newFlagSet("backends", errOut)
	if err := fs.Parse(args); err != nil {
		return parseExit(err)
	}
	for _, b := range casregistry.List(casregistry.UsageCLI) {
		_, _ = fmt.Fprintf(out, "%s\t%s\t%s\n", b.Name, b.Usage, b.Description)
	}
	return 0
}
