// Package values holds the value objects plugin configuration is validated into.
package values

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"strings"
)

// ErrDigestMismatch is returned by Verify when content does not match a pin.
var ErrDigestMismatch = errors.New("digest mismatch")

// Digest pins plugin module content to a hash, written "sha256:<hex>".
// The zero Digest pins nothing.
type Digest struct {
	algorithm string // sha256, sha512
	value     string // lower-case hex
}

func newHash(algorithm string) (hash.Hash, error) {
	switch algorithm {
	case "sha256":
		return sha256.New(), nil
	case "sha512":
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("unsupported digest algorithm: %s", algorithm)
	}
}

// NewDigest creates a digest from algorithm and hex value.
func NewDigest(algorithm, hexValue string) (Digest, error) {
	h, err := newHash(algorithm)
	if err != nil {
		return Digest{}, err
	}
	hexValue = strings.ToLower(hexValue)
	raw, err := hex.DecodeString(hexValue)
	if err != nil {
		return Digest{}, fmt.Errorf("invalid %s digest value: %w", algorithm, err)
	}
	if len(raw) != h.Size() {
		return Digest{}, fmt.Errorf("invalid %s digest value: %d bytes, want %d", algorithm, len(raw), h.Size())
	}
	return Digest{algorithm: algorithm, value: hexValue}, nil
}

// ParseDigest parses a digest string such as "sha256:abc123...". An empty string
// parses to the zero Digest.
func ParseDigest(s string) (Digest, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Digest{}, nil
	}
	algorithm, value, ok := strings.Cut(s, ":")
	if !ok || algorithm == "" {
		return Digest{}, fmt.Errorf("invalid digest format: %s", s)
	}
	return NewDigest(algorithm, value)
}

// Compute hashes the contents of r with algorithm.
func Compute(algorithm string, r io.Reader) (Digest, error) {
	h, err := newHash(algorithm)
	if err != nil {
		return Digest{}, err
	}
	if _, err := io.Copy(h, r); err != nil {
		return Digest{}, err
	}
	return Digest{algorithm: algorithm, value: hex.EncodeToString(h.Sum(nil))}, nil
}

// SHA256 returns the sha256 digest of data.
func SHA256(data []byte) Digest {
	sum := sha256.Sum256(data)
	return Digest{algorithm: "sha256", value: hex.EncodeToString(sum[:])}
}

func (d Digest) String() string {
	if d.IsZero() {
		return ""
	}
	return d.algorithm + ":" + d.value
}

// Algorithm returns the hash algorithm.
func (d Digest) Algorithm() string { return d.algorithm }

// Value returns the hex-encoded hash value.
func (d Digest) Value() string { return d.value }

// IsZero reports whether d pins nothing.
func (d Digest) IsZero() bool { return d.algorithm == "" }

// Equals checks equality with another digest.
func (d Digest) Equals(other Digest) bool {
	return d.algorithm == other.algorithm && d.value == other.value
}

// Verify checks data against the pin. The zero Digest accepts anything.
func (d Digest) Verify(data []byte) error {
	if d.IsZero() {
		return nil
	}
	h, err := newHash(d.algorithm)
	if err != nil {
		return err
	}
	h.Write(data)
	actual := Digest{algorithm: d.algorithm, value: hex.EncodeToString(h.Sum(nil))}
	if !d.Equals(actual) {
		return fmt.Errorf("%w: expected %s, got %s", ErrDigestMismatch, d, actual)
	}
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
