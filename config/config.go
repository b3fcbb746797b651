// Package config loads pixzle settings from a YAML file.
//
// The file is named by the --config flag or, failing that, the
// PIXZLE_CONFIG environment variable. Without either, Default applies.
// Command-line flags override whatever the file sets.
//
//	fragment:
//	  block_size: 8
//	  prefix: scan
//	  cross_image_shuffle: true
//	  record_cids: true
//	output:
//	  format: jpeg
//	  jpeg_quality: high
//	restore:
//	  mode: strict
//	storage:
//	  write_policy: all
//	  backends:
//	    - name: localfs
//	      config: {localfs-dir: "${HOME}/.pixzle/cas"}
//	    - name: grpc
//	      config: {grpc-target: "cas.internal:7777"}
package config

import (
	"bytes"
	"errors"
	"io"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"xdao.co/pixzle/compliance"
	"xdao.co/pixzle/manifest"
	"xdao.co/pixzle/shuffle"
	"xdao.co/pixzle/storage/bundle"
	"xdao.co/pixzle/storage/casconfig"
)

// EnvVar names the environment variable consulted when no --config is given.
const EnvVar = "PIXZLE_CONFIG"

type Config struct {
	Fragment FragmentConfig `yaml:"fragment"`
	Output   OutputConfig   `yaml:"output"`
	Restore  RestoreConfig  `yaml:"restore"`
	Storage  StorageConfig  `yaml:"storage"`
	Bundle   BundleConfig   `yaml:"bundle"`
	Keys     KeysConfig     `yaml:"keys"`
}

type FragmentConfig struct {
	BlockSize int    `yaml:"block_size"`
	Prefix    string `yaml:"prefix"`
	// Seed is parsed with shuffle.ParseSeed; empty generates one per run.
	Seed              string `yaml:"seed"`
	PreserveName      bool   `yaml:"preserve_name"`
	CrossImageShuffle bool   `yaml:"cross_image_shuffle"`
	RecordCIDs        bool   `yaml:"record_cids"`
	Workers           int    `yaml:"workers"`
}

// OutputConfig controls how restored images are written.
type OutputConfig struct {
	Format      string `yaml:"format"`
	Channels    int    `yaml:"channels"`
	JPEGQuality string `yaml:"jpeg_quality"`
	// PNGCompression is a pointer so an explicit 0 survives.
	PNGCompression *int `yaml:"png_compression"`
}

type RestoreConfig struct {
	// Mode is "permissive" (default) or "strict".
	Mode string `yaml:"mode"`
}

// StorageConfig mirrors casconfig.Config so one file can carry both.
type StorageConfig struct {
	WritePolicy string          `yaml:"write_policy"`
	Preferred   string          `yaml:"preferred"`
	Backends    []BackendConfig `yaml:"backends"`
}

type BackendConfig struct {
	Name   string            `yaml:"name"`
	ID     string            `yaml:"id"`
	Config map[string]string `yaml:"config"`
}

type BundleConfig struct {
	// Compression is none, zstd or lz4.
	Compression string `yaml:"compression"`
}

type KeysConfig struct {
	Directory string `yaml:"directory"`
	Signer    string `yaml:"signer"`
	Role      string `yaml:"role"`
	Algorithm string `yaml:"algorithm"`
}

// Default returns an empty configuration; every zero field falls back to the
// library defaults.
func Default() *Config {
	return &Config{}
}

// Resolve loads path, or the file named by PIXZLE_CONFIG when path is empty.
// With neither set it returns Default.
func Resolve(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads, expands and validates the config at path.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config: empty config path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML. Unknown keys are rejected so typos do not silently
// fall back to defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	// An empty document decodes to io.EOF and means "all defaults".
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that can be checked without opening anything.
func (c *Config) Validate() error {
	var errs []error
	if c.Fragment.BlockSize < 0 {
		errs = append(errs, fmt.Errorf("fragment.block_size must be positive, got %d", c.Fragment.BlockSize))
	}
	if c.Fragment.Workers < 0 {
		errs = append(errs, fmt.Errorf("fragment.workers must not be negative, got %d", c.Fragment.Workers))
	}
	if _, err := c.ManifestOptions(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Mode(); err != nil {
		errs = append(errs, err)
	}
	if _, err := bundle.ParseCompression(c.Bundle.Compression); err != nil {
		errs = append(errs, err)
	}
	if c.HasStorage() {
		if err := c.CAS().Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// ManifestOptions converts the fragment and output sections to the input of
// manifest.ResolveConfig.
func (c *Config) ManifestOptions() (manifest.Options, error) {
	opts := manifest.Options{
		BlockSize:           c.Fragment.BlockSize,
		Prefix:              c.Fragment.Prefix,
		PreserveName:        c.Fragment.PreserveName,
		CrossImageShuffle:   c.Fragment.CrossImageShuffle,
		Channels:            c.Output.Channels,
		PNGCompressionLevel: c.Output.PNGCompression,
	}
	if c.Fragment.Seed != "" {
		opts.Seed = shuffle.ParseSeed(c.Fragment.Seed)
	}
	if c.Output.Format != "" {
		f, err := manifest.ParseFormat(c.Output.Format)
		if err != nil {
			return manifest.Options{}, err
		}
		opts.Format = f
	}
	if c.Output.JPEGQuality != "" {
		q, err := manifest.ParseQuality(c.Output.JPEGQuality)
		if err != nil {
			return manifest.Options{}, err
		}
		opts.JPEGQuality = q
	}
	return opts, nil
}

// Mode parses restore.mode.
func (c *Config) Mode() (compliance.ComplianceMode, error) {
	return compliance.Parse(c.Restore.Mode)
}

// Compression parses bundle.compression.
func (c *Config) Compression() bundle.Compression {
	comp, _ := bundle.ParseCompression(c.Bundle.Compression)
	return comp
}

// HasStorage reports whether any CAS backend is configured.
func (c *Config) HasStorage() bool { return len(c.Storage.Backends) > 0 }

// CAS converts the storage section to a casconfig.Config.
func (c *Config) CAS() casconfig.Config {
	out := casconfig.Config{WritePolicy: c.Storage.WritePolicy}
	for _, b := range c.Storage.Backends {
		out.Backends = append(out.Backends, casconfig.BackendConfig{Name: b.Name, ID: b.ID, Config: b.Config})
	}
	return out
}

// expandVariables expands ${VAR} and ${VAR:-default} in path-like values.
func (c *Config) expandVariables() {
	c.Keys.Directory = expandVars(c.Keys.Directory)
	for i := range c.Storage.Backends {
		for k, v := range c.Storage.Backends[i].Config {
			c.Storage.Backends[i].Config[k] = expandVars(v)
		}
	}
	if c.Keys.Directory != "" {
		c.Keys.Directory = filepath.Clean(c.Keys.Directory)
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}
