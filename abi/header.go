package abi

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Version is the ABI version of this build.
const Version = "1.0.0"

// HeaderSectionName is the wasm custom section holding the encoded Header.
const HeaderSectionName = "rrp.abi"

// HeaderVersion is the version of the Header encoding itself.
const HeaderVersion uint16 = 1

// HeaderSize is the encoded size of a Header in bytes.
const HeaderSize = 44

// Magic identifies an encoded Header.
var Magic = [4]byte{'R', 'R', 'P', 'H'}

// Header is the fixed-layout record a module carries so the loader can verify it was
// built against a compatible ABI before calling into it. It is encoded little-endian,
// fields in declaration order.
type Header struct {
	Magic         [4]byte
	HeaderVersion uint16
	Major         uint16
	Minor         uint16
	Patch         uint16
	Layout        [32]byte
}

// CurrentHeader returns the header describing this build.
func CurrentHeader() Header {
	v := semver.MustParse(Version)
	//nolint:gosec // ABI version components are small
	return Header{
		Magic:         Magic,
		HeaderVersion: HeaderVersion,
		Major:         uint16(v.Major()),
		Minor:         uint16(v.Minor()),
		Patch:         uint16(v.Patch()),
		Layout:        LayoutToken(),
	}
}

// MarshalBinary encodes the header.
func (h Header) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(HeaderSize)
	if err := binary.Write(&buf, binary.LittleEndian, h); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a header. data must be exactly HeaderSize bytes.
func (h *Header) UnmarshalBinary(data []byte) error {
	if len(data) != HeaderSize {
		return fmt.Errorf("%w: header is %d bytes, want %d", ErrIncompatible, len(data), HeaderSize)
	}
	return binary.Read(bytes.NewReader(data), binary.LittleEndian, h)
}

// SemVer returns the ABI version recorded in the header.
func (h Header) SemVer() *semver.Version {
	return semver.New(uint64(h.Major), uint64(h.Minor), uint64(h.Patch), "", "")
}

// CheckHeader verifies that a module header is compatible with this build: the magic
// and header version match, the ABI version is compatible and the layout token is
// identical.
func CheckHeader(h Header) error {
	if h.Magic != Magic {
		return fmt.Errorf("%w: bad header magic %q", ErrIncompatible, h.Magic[:])
	}
	if h.HeaderVersion != HeaderVersion {
		return fmt.Errorf("%w: header version %d, want %d", ErrIncompatible, h.HeaderVersion, HeaderVersion)
	}
	if err := CheckVersion(h.SemVer()); err != nil {
		return err
	}
	if h.Layout != LayoutToken() {
		return fmt.Errorf("%w: layout token mismatch", ErrIncompatible)
	}
	return nil
}
