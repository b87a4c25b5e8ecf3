// Package wasmtest assembles minimal plugin modules for loader tests. The modules
// implement the guest exports with constant bodies: rrp_invoke answers every request
// with the same response.
package wasmtest

import (
	"slices"

	"github.com/reglet-dev/robohost/abi"
)

// Fixed guest addresses.
const (
	AllocPtr    = 4096
	ResponsePtr = 1024
	LogPtr      = 2048
)

// DefaultResponse names the plugin "fixture" and reports every kind unsupported.
const DefaultResponse = `{"payload":{"name":"fixture","supported":false,"handle":0}}`

// Options shape a fixture module.
type Options struct {
	// Response is returned from every rrp_invoke. Empty means DefaultResponse.
	Response string
	// TrapOnConstruct makes rrp_plugin_new execute unreachable.
	TrapOnConstruct bool
	// InitLog is a JSON abi.LogMessage sent to the host from _initialize.
	InitLog string
	// OmitExports drops the named exports.
	OmitExports []string
}

const (
	typeAlloc = iota
	typeInvoke
	typeNew
	typeVoid
	typeLog
)

const (
	valI32 = 0x7f
	valI64 = 0x7e
)

// Module assembles a fixture without a header section.
func Module(opts Options) []byte {
	if opts.Response == "" {
		opts.Response = DefaultResponse
	}

	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	out = appendSection(out, 1, vector(
		funcType([]byte{valI32}, []byte{valI32}),
		funcType([]byte{valI32, valI32}, []byte{valI64}),
		funcType(nil, []byte{valI64}),
		funcType(nil, nil),
		funcType([]byte{valI64}, nil),
	))

	out = appendSection(out, 2, vector(
		slices.Concat(name("rrp"), name("log_message"), []byte{0x00}, uleb(typeLog)),
	))

	// function 0 is the import
	out = appendSection(out, 3, vector(uleb(typeAlloc), uleb(typeInvoke), uleb(typeNew), uleb(typeVoid)))

	out = appendSection(out, 5, vector([]byte{0x00, 0x01}))

	var exports [][]byte
	for _, e := range []struct {
		name  string
		kind  byte
		index uint64
	}{
		{"memory", 0x02, 0},
		{"rrp_alloc", 0x00, 1},
		{"rrp_invoke", 0x00, 2},
		{"rrp_plugin_new", 0x00, 3},
		{"_initialize", 0x00, 4},
	} {
		if slices.Contains(opts.OmitExports, e.name) {
			continue
		}
		exports = append(exports, slices.Concat(name(e.name), []byte{e.kind}, uleb(e.index)))
	}
	out = appendSection(out, 7, vector(exports...))

	alloc := slices.Concat([]byte{0x41}, sleb(AllocPtr), []byte{0x0b})
	invoke := slices.Concat([]byte{0x42}, sleb(packed(ResponsePtr, len(opts.Response))), []byte{0x0b})
	construct := []byte{0x42, 0x00, 0x0b}
	if opts.TrapOnConstruct {
		construct = []byte{0x00, 0x0b}
	}
	initialize := []byte{0x0b}
	if opts.InitLog != "" {
		initialize = slices.Concat([]byte{0x42}, sleb(packed(LogPtr, len(opts.InitLog))), []byte{0x10, 0x00, 0x0b})
	}
	out = appendSection(out, 10, vector(body(alloc), body(invoke), body(construct), body(initialize)))

	segments := [][]byte{segment(ResponsePtr, opts.Response)}
	if opts.InitLog != "" {
		segments = append(segments, segment(LogPtr, opts.InitLog))
	}
	out = appendSection(out, 11, vector(segments...))

	return out
}

// Stamped assembles a fixture carrying h in its header section.
func Stamped(opts Options, h abi.Header) []byte {
	data, err := h.MarshalBinary()
	if err != nil {
		panic(err)
	}
	return append(Module(opts), abi.EncodeCustomSection(abi.HeaderSectionName, data)...)
}

// Current assembles a fixture stamped with this build's header.
func Current(opts Options) []byte {
	return Stamped(opts, abi.CurrentHeader())
}

func packed(ptr, length int) int64 {
	return int64(ptr)<<32 | int64(length)
}

func funcType(params, results []byte) []byte {
	return slices.Concat([]byte{0x60}, uleb(uint64(len(params))), params, uleb(uint64(len(results))), results)
}

func body(code []byte) []byte {
	// no locals
	b := append([]byte{0x00}, code...)
	return append(uleb(uint64(len(b))), b...)
}

func segment(offset int, data string) []byte {
	return slices.Concat([]byte{0x00, 0x41}, sleb(int64(offset)), []byte{0x0b}, uleb(uint64(len(data))), []byte(data))
}

func name(s string) []byte {
	return append(uleb(uint64(len(s))), s...)
}

func vector(items ...[]byte) []byte {
	out := uleb(uint64(len(items)))
	for _, item := range items {
		out = append(out, item...)
	}
	return out
}

func appendSection(out []byte, id byte, content []byte) []byte {
	out = append(out, id)
	out = append(out, uleb(uint64(len(content)))...)
	return append(out, content...)
}

func uleb(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

func sleb(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}
