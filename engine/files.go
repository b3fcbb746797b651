package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"xdao.co/pixzle/manifest"
	"xdao.co/pixzle/model"
	"xdao.co/pixzle/source"
)

// FragmentFiles fragments the images named by inputs (paths or http(s)
// URLs) and writes manifest.json plus one fragment file per input into
// outDir, creating it when needed.
func FragmentFiles(ctx context.Context, inputs []string, outDir string, cfg manifest.Config, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	if len(inputs) == 0 {
		return nil, model.NewError(model.KindConfig, "fragment files", "at least one image path is required")
	}
	if outDir == "" {
		return nil, model.NewError(model.KindConfig, "fragment files", "output directory is required")
	}

	images := make([]Image, len(inputs))
	for i, in := range inputs {
		images[i] = Image{Source: source.Parse(in)}
	}
	res, err := Fragment(ctx, images, cfg, opts)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	mb, err := manifest.MarshalJSON(res.Manifest)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(outDir, manifest.JSONFileName), mb, 0o644); err != nil {
		return nil, err
	}
	for i, data := range res.Fragments {
		name := manifest.FragmentFileName(res.Manifest, i)
		if err := os.WriteFile(filepath.Join(outDir, name), data, 0o644); err != nil {
			return nil, err
		}
		opts.Logger.Debug("wrote fragment", "path", filepath.Join(outDir, name))
	}
	return res, nil
}

// ReadManifestFile loads a JSON or CBOR manifest from disk.
func ReadManifestFile(path string) (*manifest.Manifest, error) {
	if path == "" {
		return nil, model.NewError(model.KindConfig, "read manifest", "manifest path is required")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return manifest.Parse(b)
}

// RestoreFiles restores the images encoded in fragmentPaths (manifest order)
// using the manifest at manifestPath and writes them into outDir. It returns
// the written paths in image order.
//
// Files are named after the preserved original names when the manifest has
// them, and "{prefix}_{n}.{ext}" otherwise.
func RestoreFiles(ctx context.Context, fragmentPaths []string, manifestPath, outDir string, opts Options) ([]string, error) {
	opts = opts.withDefaults()
	if len(fragmentPaths) == 0 {
		return nil, model.NewError(model.KindConfig, "restore files", "at least one fragment path is required")
	}
	if outDir == "" {
		return nil, model.NewError(model.KindConfig, "restore files", "output directory is required")
	}
	m, err := ReadManifestFile(manifestPath)
	if err != nil {
		return nil, err
	}
	if err := manifest.ValidateFragmentCount(len(fragmentPaths), m); err != nil {
		return nil, err
	}

	fragments := make([]Piece, len(fragmentPaths))
	for i, p := range fragmentPaths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read fragment %d: %w", i, err)
		}
		fragments[i] = PieceBytes(data)
	}

	encoded, err := RestoreEncoded(ctx, fragments, m, opts)
	if err != nil {
		return nil, err
	}
	return WriteRestored(outDir, m, encoded, opts)
}

// WriteRestored writes encoded restored images into outDir using the
// manifest's naming rules.
func WriteRestored(outDir string, m *manifest.Manifest, encoded [][]byte, opts Options) ([]string, error) {
	opts = opts.withDefaults()
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	paths := make([]string, len(encoded))
	for i, data := range encoded {
		// Recorded names come from the manifest and must not escape outDir.
		name := filepath.Base(manifest.OutputFileName(m, i))
		if name == "." || name == ".." || name == string(filepath.Separator) {
			name = manifest.RestoredFileName(m, i)
		}
		p := filepath.Join(outDir, name)
		if err := os.WriteFile(p, data, 0o644); err != nil {
			return nil, err
		}
		paths[i] = p
		opts.Logger.Debug("wrote restored image", "path", p)
	}
	return paths, nil
}
