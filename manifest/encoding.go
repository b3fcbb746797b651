package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"

	"xdao.co/pixzle/cidutil"
	"xdao.co/pixzle/model"
	"xdao.co/pixzle/shuffle"
)

// MarshalJSON writes the manifest as indented JSON with a trailing newline,
// the form stored next to fragments.
func MarshalJSON(m *Manifest) ([]byte, error) {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, model.WrapError(model.KindManifest, "encode manifest", "json", err)
	}
	return append(b, '\n'), nil
}

// ParseJSON decodes a JSON manifest and fills output defaults missing from
// older writers. It does not call Validate.
func ParseJSON(data []byte) (*Manifest, error) {
	m := Manifest{Config: Config{Output: OutputOptions{PNGCompressionLevel: DefaultPNGCompressionLevel}}}
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&m); err != nil {
		return nil, model.WrapError(model.KindManifest, "parse manifest", "invalid JSON", err)
	}
	m.Config.Output = m.Config.Output.withOutputDefaults()
	return &m, nil
}

// CBOR uses Core Deterministic Encoding: the same manifest always encodes to
// the same bytes, which is what CIDs and signatures are computed over.
var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("manifest: CBOR encoder initialization failed: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("manifest: CBOR decoder initialization failed: " + err.Error())
	}
}

// wireManifest mirrors Manifest with the int-or-string fields spelled as
// plain CBOR values.
type wireManifest struct {
	ID        string      `cbor:"id"`
	Version   string      `cbor:"version"`
	Timestamp string      `cbor:"timestamp"`
	Config    wireConfig  `cbor:"config"`
	Images    []wireImage `cbor:"images"`
	Fragments []string    `cbor:"fragments,omitempty"`
}

type wireConfig struct {
	BlockSize         int        `cbor:"blockSize"`
	Prefix            string     `cbor:"prefix"`
	Seed              any        `cbor:"seed"`
	PreserveName      bool       `cbor:"preserveName"`
	CrossImageShuffle bool       `cbor:"crossImageShuffle"`
	Output            wireOutput `cbor:"output"`
}

type wireOutput struct {
	Format              string `cbor:"format"`
	Channels            int    `cbor:"channels"`
	JPEGQuality         any    `cbor:"jpegQuality"`
	PNGCompressionLevel int    `cbor:"pngCompressionLevel"`
}

type wireImage struct {
	W    int    `cbor:"w"`
	H    int    `cbor:"h"`
	Name string `cbor:"name,omitempty"`
}

func toWire(m *Manifest) wireManifest {
	w := wireManifest{
		ID:        m.ID,
		Version:   m.Version,
		Timestamp: m.Timestamp,
		Config: wireConfig{
			BlockSize:         m.Config.BlockSize,
			Prefix:            m.Config.Prefix,
			PreserveName:      m.Config.PreserveName,
			CrossImageShuffle: m.Config.CrossImageShuffle,
			Output: wireOutput{
				Format:              string(m.Config.Output.Format),
				Channels:            m.Config.Output.Channels,
				PNGCompressionLevel: m.Config.Output.PNGCompressionLevel,
			},
		},
		Fragments: m.Fragments,
	}
	if n, ok := m.Config.Seed.Int(); ok {
		w.Config.Seed = n
	} else if m.Config.Seed.IsString() {
		w.Config.Seed = m.Config.Seed.Text()
	}
	q := m.Config.Output.JPEGQuality
	switch {
	case q.IsPreset():
		w.Config.Output.JPEGQuality = q.preset
	case !q.IsZero():
		w.Config.Output.JPEGQuality = q.value
	}
	w.Images = make([]wireImage, len(m.Images))
	for i, img := range m.Images {
		w.Images[i] = wireImage(img)
	}
	return w
}

func fromWire(w wireManifest) (*Manifest, error) {
	m := &Manifest{
		ID:        w.ID,
		Version:   w.Version,
		Timestamp: w.Timestamp,
		Config: Config{
			BlockSize:         w.Config.BlockSize,
			Prefix:            w.Config.Prefix,
			PreserveName:      w.Config.PreserveName,
			CrossImageShuffle: w.Config.CrossImageShuffle,
			Output: OutputOptions{
				Format:              Format(w.Config.Output.Format),
				Channels:            w.Config.Output.Channels,
				PNGCompressionLevel: w.Config.Output.PNGCompressionLevel,
			},
		},
		Fragments: w.Fragments,
	}
	switch s := w.Config.Seed.(type) {
	case nil:
	case string:
		m.Config.Seed = shuffle.StringSeed(s)
	case uint64:
		m.Config.Seed = shuffle.NumericSeed(int64(s))
	case int64:
		m.Config.Seed = shuffle.NumericSeed(s)
	default:
		return nil, fmt.Errorf("seed has unsupported CBOR type %T", s)
	}
	switch q := w.Config.Output.JPEGQuality.(type) {
	case nil:
	case string:
		m.Config.Output.JPEGQuality = QualityPreset(q)
	case uint64:
		m.Config.Output.JPEGQuality = QualityValue(int(q))
	case int64:
		m.Config.Output.JPEGQuality = QualityValue(int(q))
	default:
		return nil, fmt.Errorf("jpegQuality has unsupported CBOR type %T", q)
	}
	m.Images = make([]ImageInfo, len(w.Images))
	for i, img := range w.Images {
		m.Images[i] = ImageInfo(img)
	}
	m.Config.Output = m.Config.Output.withOutputDefaults()
	return m, nil
}

// MarshalCBOR returns the canonical encoding of m.
func MarshalCBOR(m *Manifest) ([]byte, error) {
	b, err := cborEnc.Marshal(toWire(m))
	if err != nil {
		return nil, model.WrapError(model.KindManifest, "encode manifest", "cbor", err)
	}
	return b, nil
}

// ParseCBOR decodes a manifest written by MarshalCBOR.
func ParseCBOR(data []byte) (*Manifest, error) {
	var w wireManifest
	if err := cborDec.Unmarshal(data, &w); err != nil {
		return nil, model.WrapError(model.KindManifest, "parse manifest", "invalid CBOR", err)
	}
	m, err := fromWire(w)
	if err != nil {
		return nil, model.WrapError(model.KindManifest, "parse manifest", "invalid CBOR", err)
	}
	return m, nil
}

// Parse accepts either encoding. JSON manifests start with '{' after
// optional whitespace; anything else is treated as CBOR.
func Parse(data []byte) (*Manifest, error) {
	if trimmed := bytes.TrimLeft(data, " \t\r\n"); len(trimmed) > 0 && trimmed[0] == '{' {
		return ParseJSON(data)
	}
	return ParseCBOR(data)
}

// CanonicalBytes is the byte string manifests are addressed and signed by.
func CanonicalBytes(m *Manifest) ([]byte, error) {
	return MarshalCBOR(m)
}

// CID returns the CIDv1 (raw, sha2-256) of the canonical encoding.
func CID(m *Manifest) (cid.Cid, error) {
	b, err := CanonicalBytes(m)
	if err != nil {
		return cid.Undef, err
	}
	return cidutil.Sum(b)
}
