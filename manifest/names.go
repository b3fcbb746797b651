package manifest

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"unicode/utf8"
)

// EncodeName returns the standard base64 form of a UTF-8 name.
func EncodeName(name string) string {
	return base64.StdEncoding.EncodeToString([]byte(name))
}

// DecodeName reverses EncodeName. Values that are not valid base64 of UTF-8
// text are returned unchanged so manifests that stored plain names still
// work.
func DecodeName(encoded string) string {
	b, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || !utf8.Valid(b) {
		return encoded
	}
	return string(b)
}

// FileName returns "{prefix}_{n}[_fragmented].{ext}" where n is the 1-based
// index zero-padded to the digit count of the image count. Fragments are
// always PNG; restored images use the output format's extension.
func FileName(m *Manifest, idx int, fragmented bool) string {
	width := len(strconv.Itoa(len(m.Images)))
	suffix := ""
	ext := m.Config.Output.withOutputDefaults().Format.Extension()
	if fragmented {
		suffix = "_fragmented"
		ext = FormatPNG.Extension()
	}
	return fmt.Sprintf("%s_%0*d%s.%s", m.Config.Prefix, width, idx+1, suffix, ext)
}

// FragmentFileName names fragment idx.
func FragmentFileName(m *Manifest, idx int) string {
	return FileName(m, idx, true)
}

// RestoredFileName is the generic name for restored image idx.
func RestoredFileName(m *Manifest, idx int) string {
	return FileName(m, idx, false)
}

// RestoredOriginalFileName returns the preserved original name of image idx
// with the output extension, or "" when no usable name was recorded.
func RestoredOriginalFileName(m *Manifest, idx int) string {
	if idx < 0 || idx >= len(m.Images) || m.Images[idx].Name == "" {
		return ""
	}
	name := DecodeName(m.Images[idx].Name)
	if name == "" {
		return ""
	}
	return name + "." + m.Config.Output.withOutputDefaults().Format.Extension()
}

// OutputFileName prefers the original name and falls back to the generic
// restored name.
func OutputFileName(m *Manifest, idx int) string {
	if name := RestoredOriginalFileName(m, idx); name != "" {
		return name
	}
	return RestoredFileName(m, idx)
}
