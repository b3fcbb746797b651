package manifest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"xdao.co/pixzle/model"
	"xdao.co/pixzle/shuffle"
)

// Defaults applied by ResolveConfig.
const (
	DefaultBlockSize           = 2
	DefaultPrefix              = "img"
	DefaultChannels            = 4
	DefaultPNGCompressionLevel = 6
)

// Format is the encoding of restored images.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// ParseFormat accepts png, jpeg and jpg in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	}
	return "", model.Errorf(model.KindConfig, "parse format", "format must be 'png' or 'jpeg', got %q", s)
}

// Extension is the file extension written for the format.
func (f Format) Extension() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return "png"
}

func (f Format) valid() bool { return f == FormatPNG || f == FormatJPEG }

// Quality presets for JPEG output.
const (
	QualityLow    = "low"
	QualityNormal = "normal"
	QualityHigh   = "high"
)

var qualityPresets = map[string]int{
	QualityLow:    40,
	QualityNormal: 75,
	QualityHigh:   90,
}

// Quality is a JPEG quality given either as a preset name or as a number.
// The zero Quality is unset and resolves to the "normal" preset.
type Quality struct {
	preset string
	value  int
	set    bool
}

// QualityPreset returns a named quality. Unknown names are rejected by
// ParseQuality; QualityPreset itself does not validate.
func QualityPreset(name string) Quality { return Quality{preset: name, set: true} }

// QualityValue returns a numeric quality.
func QualityValue(v int) Quality { return Quality{value: v, set: true} }

// ParseQuality accepts low, normal, high or an integer 0-100.
func ParseQuality(s string) (Quality, error) {
	s = strings.TrimSpace(s)
	if _, ok := qualityPresets[strings.ToLower(s)]; ok {
		return QualityPreset(strings.ToLower(s)), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return Quality{}, model.Errorf(model.KindConfig, "parse jpeg quality", "JPEG quality must be 'low', 'normal', 'high', or 0-100, got %q", s)
	}
	if n < 0 || n > 100 {
		return Quality{}, model.Errorf(model.KindConfig, "parse jpeg quality", "JPEG quality must be between 0 and 100, got %d", n)
	}
	return QualityValue(n), nil
}

func (q Quality) IsZero() bool { return !q.set }

// IsPreset reports whether q names a preset.
func (q Quality) IsPreset() bool { return q.set && q.preset != "" }

// Int resolves q to 0-100. Out-of-range numbers, which Validate rejects,
// are clamped; unknown presets and the zero
// Quality resolve to the normal preset.
func (q Quality) Int() int {
	if !q.set {
		return qualityPresets[QualityNormal]
	}
	if q.preset != "" {
		if v, ok := qualityPresets[q.preset]; ok {
			return v
		}
		return qualityPresets[QualityNormal]
	}
	return min(100, max(0, q.value))
}

func (q Quality) String() string {
	if q.IsPreset() {
		return q.preset
	}
	return strconv.Itoa(q.Int())
}

func (q Quality) MarshalJSON() ([]byte, error) {
	if !q.set {
		return []byte("null"), nil
	}
	if q.preset != "" {
		return json.Marshal(q.preset)
	}
	return []byte(strconv.Itoa(q.value)), nil
}

func (q *Quality) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*q = Quality{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if _, ok := qualityPresets[s]; !ok {
			return fmt.Errorf("jpegQuality: unknown preset %q", s)
		}
		*q = QualityPreset(s)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("jpegQuality must be an integer or a preset name: %w", err)
	}
	*q = QualityValue(n)
	return nil
}

// OutputOptions controls how restored images are encoded.
type OutputOptions struct {
	Format              Format  `json:"format"`
	Channels            int     `json:"channels"`
	JPEGQuality         Quality `json:"jpegQuality"`
	PNGCompressionLevel int     `json:"pngCompressionLevel"`
}

// Config is the resolved fragmentation configuration recorded in a manifest.
type Config struct {
	BlockSize         int           `json:"blockSize"`
	Prefix            string        `json:"prefix"`
	Seed              shuffle.Seed  `json:"seed"`
	PreserveName      bool          `json:"preserveName"`
	CrossImageShuffle bool          `json:"crossImageShuffle"`
	Output            OutputOptions `json:"output"`
}

// Options is caller input to ResolveConfig. Zero fields take defaults.
type Options struct {
	BlockSize         int
	Prefix            string
	Seed              shuffle.Seed
	PreserveName      bool
	CrossImageShuffle bool

	Format      Format
	Channels    int
	JPEGQuality Quality
	// PNGCompressionLevel is a pointer because 0 (no compression) is a
	// valid choice distinct from "use the default".
	PNGCompressionLevel *int
}

// ResolveConfig fills defaults, generates a seed when none is given, and
// validates the result. The returned Config is what gets recorded.
func ResolveConfig(opts Options) (Config, error) {
	const op = "resolve config"

	cfg := Config{
		BlockSize:         opts.BlockSize,
		Prefix:            opts.Prefix,
		Seed:              opts.Seed,
		PreserveName:      opts.PreserveName,
		CrossImageShuffle: opts.CrossImageShuffle,
		Output: OutputOptions{
			Format:              opts.Format,
			Channels:            opts.Channels,
			JPEGQuality:         opts.JPEGQuality,
			PNGCompressionLevel: DefaultPNGCompressionLevel,
		},
	}
	if cfg.BlockSize == 0 {
		cfg.BlockSize = DefaultBlockSize
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.Output.Format == "" {
		cfg.Output.Format = FormatPNG
	}
	if cfg.Output.Channels == 0 {
		cfg.Output.Channels = DefaultChannels
	}
	if cfg.Output.JPEGQuality.IsZero() {
		cfg.Output.JPEGQuality = QualityPreset(QualityNormal)
	}
	if opts.PNGCompressionLevel != nil {
		cfg.Output.PNGCompressionLevel = *opts.PNGCompressionLevel
	}
	if cfg.Seed.IsZero() {
		seed, err := shuffle.GenerateSeed()
		if err != nil {
			return Config{}, model.WrapError(model.KindConfig, op, "cannot generate seed", err)
		}
		cfg.Seed = seed
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks a resolved configuration.
func (c Config) Validate() error {
	const op = "validate config"
	if c.BlockSize <= 0 {
		return model.Errorf(model.KindConfig, op, "block size must be a positive integer, got %d", c.BlockSize)
	}
	if c.Seed.IsZero() {
		return model.NewError(model.KindConfig, op, "seed is required")
	}
	return c.Output.Validate()
}

// Validate checks output options.
func (o OutputOptions) Validate() error {
	const op = "validate output options"
	if !o.Format.valid() {
		return model.Errorf(model.KindConfig, op, "format must be 'png' or 'jpeg', got %q", o.Format)
	}
	if o.Channels != 3 && o.Channels != 4 {
		return model.Errorf(model.KindConfig, op, "channels must be 3 or 4, got %d", o.Channels)
	}
	if o.PNGCompressionLevel < 0 || o.PNGCompressionLevel > 9 {
		return model.Errorf(model.KindConfig, op, "PNG compression level must be between 0 and 9, got %d", o.PNGCompressionLevel)
	}
	if o.JPEGQuality.preset != "" {
		if _, ok := qualityPresets[o.JPEGQuality.preset]; !ok {
			return model.Errorf(model.KindConfig, op, "unknown JPEG quality preset %q", o.JPEGQuality.preset)
		}
	} else if v := o.JPEGQuality.value; v < 0 || v > 100 {
		return model.Errorf(model.KindConfig, op, "JPEG quality must be between 0 and 100, got %d", v)
	}
	return nil
}

// FragmentOutput is the encoding used for fragment images: lossless RGBA PNG
// with the configured compression level. Lossy or 3-channel fragments would
// corrupt block data.
func (o OutputOptions) FragmentOutput() OutputOptions {
	return OutputOptions{
		Format:              FormatPNG,
		Channels:            4,
		JPEGQuality:         o.JPEGQuality,
		PNGCompressionLevel: o.PNGCompressionLevel,
	}
}

// withOutputDefaults fills output options missing from older manifests.
func (o OutputOptions) withOutputDefaults() OutputOptions {
	if o.Format == "" {
		o.Format = FormatPNG
	}
	if o.Channels == 0 {
		o.Channels = DefaultChannels
	}
	if o.JPEGQuality.IsZero() {
		o.JPEGQuality = QualityPreset(QualityNormal)
	}
	return o
}
