package abi

import (
	"bytes"
	"errors"
	"fmt"
)

var wasmPreamble = []byte{0x00, 'a', 's', 'm', 0x01, 0x00, 0x00, 0x00}

// ErrNotWasm is returned for data that is not a wasm binary module.
var ErrNotWasm = errors.New("not a wasm binary module")

// Section is one top-level section of a wasm binary.
type Section struct {
	ID      byte
	Name    string // custom sections only
	Payload []byte // full section contents; for custom sections this follows the name
	Raw     []byte // the encoded section including id and size
}

// Sections splits a wasm binary into its top-level sections.
func Sections(module []byte) ([]Section, error) {
	if !bytes.HasPrefix(module, wasmPreamble) {
		return nil, ErrNotWasm
	}
	var out []Section
	rest := module[len(wasmPreamble):]
	for len(rest) > 0 {
		start := rest
		id := rest[0]
		size, n, err := readULEB(rest[1:])
		if err != nil {
			return nil, fmt.Errorf("section size: %w", err)
		}
		body := rest[1+n:]
		if uint64(len(body)) < size {
			return nil, fmt.Errorf("section %d truncated", id)
		}
		s := Section{ID: id, Payload: body[:size], Raw: start[:1+n+int(size)]}
		if id == 0 {
			nameLen, m, err := readULEB(s.Payload)
			if err != nil || uint64(len(s.Payload)-m) < nameLen {
				return nil, fmt.Errorf("custom section name malformed")
			}
			s.Name = string(s.Payload[m : m+int(nameLen)])
			s.Payload = s.Payload[m+int(nameLen):]
		}
		out = append(out, s)
		rest = body[size:]
	}
	return out, nil
}

// CustomSection returns the payload of the first custom section named name.
func CustomSection(module []byte, name string) ([]byte, bool, error) {
	sections, err := Sections(module)
	if err != nil {
		return nil, false, err
	}
	for _, s := range sections {
		if s.ID == 0 && s.Name == name {
			return s.Payload, true, nil
		}
	}
	return nil, false, nil
}

// EncodeCustomSection encodes a custom section.
func EncodeCustomSection(name string, payload []byte) []byte {
	var body []byte
	body = appendULEB(body, uint64(len(name)))
	body = append(body, name...)
	body = append(body, payload...)

	out := []byte{0}
	out = appendULEB(out, uint64(len(body)))
	return append(out, body...)
}

// StampHeader returns module with any existing header section replaced by h.
func StampHeader(module []byte, h Header) ([]byte, error) {
	sections, err := Sections(module)
	if err != nil {
		return nil, err
	}
	encoded, err := h.MarshalBinary()
	if err != nil {
		return nil, err
	}

	out := append([]byte{}, wasmPreamble...)
	for _, s := range sections {
		if s.ID == 0 && s.Name == HeaderSectionName {
			continue
		}
		out = append(out, s.Raw...)
	}
	return append(out, EncodeCustomSection(HeaderSectionName, encoded)...), nil
}

func readULEB(data []byte) (uint64, int, error) {
	var v uint64
	var shift uint
	for i, c := range data {
		if shift >= 64 {
			return 0, 0, errors.New("leb128 overflow")
		}
		v |= uint64(c&0x7f) << shift
		if c&0x80 == 0 {
			return v, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, errors.New("leb128 truncated")
}

func appendULEB(out []byte, v uint64) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, c|0x80)
			continue
		}
		return append(out, c)
	}
}
