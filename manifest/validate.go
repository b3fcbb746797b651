package manifest

import (
	"strconv"
	"strings"

	"xdao.co/pixzle/model"
)

// ValidateFileNames rejects duplicate preserved names. Names are compared
// after decoding. Nothing is checked unless preserveName is set and there
// are at least two images.
func ValidateFileNames(images []ImageInfo, preserveName bool) error {
	if !preserveName || len(images) <= 1 {
		return nil
	}
	seen := make(map[string]struct{}, len(images))
	for _, img := range images {
		if img.Name == "" {
			continue
		}
		name := DecodeName(img.Name)
		if _, dup := seen[name]; dup {
			return model.Errorf(model.KindDuplicateName, "validate file names", "duplicate file name detected: %s", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// ValidateFragmentCount checks that n fragments were supplied for m.
func ValidateFragmentCount(n int, m *Manifest) error {
	if want := len(m.Images); n != want {
		return model.Errorf(model.KindCountMismatch, "validate fragment count", "fragment image count mismatch: expected %d but got %d", want, n)
	}
	return nil
}

// ValidateVersion checks that m was written by a compatible schema. With
// strict set the version must match exactly; otherwise the major versions
// must agree.
func ValidateVersion(m *Manifest, strict bool) error {
	const op = "validate manifest version"
	if m.Version == "" {
		return model.NewError(model.KindManifest, op, "manifest version is missing")
	}
	if strict {
		if m.Version != Version {
			return model.Errorf(model.KindManifest, op, "manifest version %s does not match %s", m.Version, Version)
		}
		return nil
	}
	got, err := majorVersion(m.Version)
	if err != nil {
		return model.WrapError(model.KindManifest, op, "malformed manifest version "+strconv.Quote(m.Version), err)
	}
	want, _ := majorVersion(Version)
	if got != want {
		return model.Errorf(model.KindManifest, op, "unsupported manifest version %s (supported: %d.x)", m.Version, want)
	}
	return nil
}

func majorVersion(v string) (int, error) {
	v = strings.TrimPrefix(v, "v")
	major, _, _ := strings.Cut(v, ".")
	return strconv.Atoi(major)
}

// Validate checks the structure of a decoded manifest before it drives a
// restore.
func (m *Manifest) Validate() error {
	const op = "validate manifest"
	if m == nil {
		return model.NewError(model.KindConfig, op, "manifest is required")
	}
	if err := m.Config.Validate(); err != nil {
		return model.WrapError(model.KindManifest, op, "invalid config", err)
	}
	if len(m.Images) == 0 {
		return model.NewError(model.KindManifest, op, "manifest lists no images")
	}
	for i, img := range m.Images {
		if img.W < 1 || img.H < 1 {
			return model.Errorf(model.KindManifest, op, "image %d has invalid dimensions %dx%d", i, img.W, img.H)
		}
	}
	if m.Fragments != nil && len(m.Fragments) != len(m.Images) {
		return model.Errorf(model.KindManifest, op, "manifest records %d fragment CIDs for %d images", len(m.Fragments), len(m.Images))
	}
	return nil
}
