package shuffle

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// maxGeneratedSeed keeps generated seeds within the integer range that every
// JSON consumer can represent exactly (2^53).
const maxGeneratedSeed = 1 << 53

// Seed keys the permutation. It is either an integer or a string and keeps
// that form when serialized: a numeric seed is a JSON number, a string seed a
// JSON string.
//
// The zero Seed is "unset".
type Seed struct {
	num   int64
	str   string
	isStr bool
	set   bool
}

// NumericSeed returns an integer seed.
func NumericSeed(n int64) Seed {
	return Seed{num: n, set: true}
}

// StringSeed returns a string seed.
func StringSeed(s string) Seed {
	return Seed{str: s, isStr: true, set: true}
}

// GenerateSeed returns a fresh numeric seed in [1, 2^53) drawn from
// crypto/rand.
func GenerateSeed() (Seed, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return Seed{}, fmt.Errorf("generate seed: %w", err)
	}
	n := binary.BigEndian.Uint64(b[:]) % (maxGeneratedSeed - 1)
	return NumericSeed(int64(n + 1)), nil
}

// ParseSeed reads a seed from text. Base-10 integers become numeric seeds;
// anything else is kept as a string seed.
func ParseSeed(s string) Seed {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return NumericSeed(n)
	}
	return StringSeed(s)
}

// IsZero reports whether the seed is unset.
func (s Seed) IsZero() bool { return !s.set }

// IsString reports whether the seed is a string seed.
func (s Seed) IsString() bool { return s.set && s.isStr }

// Int returns the numeric value. ok is false for string or unset seeds.
func (s Seed) Int() (n int64, ok bool) {
	if !s.set || s.isStr {
		return 0, false
	}
	return s.num, true
}

// Text is the byte string fed into key derivation: the decimal form of a
// numeric seed, or the UTF-8 bytes of a string seed. NumericSeed(42) and
// StringSeed("42") therefore produce the same permutation.
func (s Seed) Text() string {
	if s.isStr {
		return s.str
	}
	return strconv.FormatInt(s.num, 10)
}

func (s Seed) String() string {
	if !s.set {
		return "<unset>"
	}
	if s.isStr {
		return strconv.Quote(s.str)
	}
	return s.Text()
}

func (s Seed) MarshalJSON() ([]byte, error) {
	if !s.set {
		return []byte("null"), nil
	}
	if s.isStr {
		return json.Marshal(s.str)
	}
	return []byte(strconv.FormatInt(s.num, 10)), nil
}

func (s *Seed) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = Seed{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		*s = StringSeed(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("seed must be an integer or a string: %w", err)
	}
	n, err := seedFromNumber(num.String())
	if err != nil {
		return err
	}
	*s = NumericSeed(n)
	return nil
}

// seedFromNumber accepts integral JSON numbers, including exponent forms
// such as 1e3. Fractional values are rejected.
func seedFromNumber(text string) (int64, error) {
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("seed %q: %w", text, err)
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("seed %s out of range", text)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("seed %s is not an integer", text)
	}
	return int64(f), nil
}
