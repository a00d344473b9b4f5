// Package signature provides the deterministic 32-bit fingerprint used as the only
// retrieval key of the associative store.
package signature

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	offsetBasis uint32 = 0x811C9DC5
	prime       uint32 = 0x01000193
)

// Fingerprint is an FNV-1a digest of a byte span.
type Fingerprint uint32

// Sum returns the FNV-1a fingerprint of data. Empty input yields the offset basis.
func Sum(data []byte) Fingerprint {
	h := offsetBasis
	for _, b := range data {
		h ^= uint32(b)
		h *= prime
	}
	return Fingerprint(h)
}

// SumString is Sum over the bytes of s.
func SumString(s string) Fingerprint {
	h := offsetBasis
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime
	}
	return Fingerprint(h)
}

// String renders the fingerprint as 0x-prefixed, zero-padded upper-case hex.
func (f Fingerprint) String() string {
	return fmt.Sprintf("0x%08X", uint32(f))
}

// MarshalText implements encoding.TextMarshaler so JSON carries the hex form.
func (f Fingerprint) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Fingerprint) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// Parse reads a fingerprint in hex, with or without a 0x prefix.
func Parse(s string) (Fingerprint, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return 0, fmt.Errorf("empty fingerprint")
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid fingerprint %q: %w", s, err)
	}
	return Fingerprint(v), nil
}
