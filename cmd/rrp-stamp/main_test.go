package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/reglet-dev/robohost/abi"
	"github.com/reglet-dev/robohost/internal/wasmtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readHeader(t *testing.T, path string) abi.Header {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	payload, ok, err := abi.CustomSection(data, abi.HeaderSectionName)
	require.NoError(t, err)
	require.True(t, ok, "no header section")

	var h abi.Header
	require.NoError(t, h.UnmarshalBinary(payload))
	return h
}

func countHeaders(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	sections, err := abi.Sections(data)
	require.NoError(t, err)

	n := 0
	for _, s := range sections {
		if s.ID == 0 && s.Name == abi.HeaderSectionName {
			n++
		}
	}
	return n
}

func TestExecute_InPlace(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "plugin.wasm")
	require.NoError(t, os.WriteFile(path, wasmtest.Module(wasmtest.Options{}), 0o600))

	var out bytes.Buffer
	require.NoError(t, execute([]string{path}, &out))
	assert.Contains(t, out.String(), "stamped ABI "+abi.Version)

	h := readHeader(t, path)
	assert.NoError(t, abi.CheckHeader(h))
}

func TestExecute_ReplacesHeader(t *testing.T) {
	t.Parallel()

	old := abi.CurrentHeader()
	old.Major++
	dir := t.TempDir()
	in := filepath.Join(dir, "old.wasm")
	out := filepath.Join(dir, "new.wasm")
	require.NoError(t, os.WriteFile(in, wasmtest.Stamped(wasmtest.Options{}, old), 0o600))

	var buf bytes.Buffer
	require.NoError(t, execute([]string{"-q", "-o", out, in}, &buf))
	assert.Empty(t, buf.String())

	assert.Equal(t, old, readHeader(t, in))
	assert.Equal(t, abi.CurrentHeader(), readHeader(t, out))
	assert.Equal(t, 1, countHeaders(t, out))
}

func TestExecute_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	notWasm := filepath.Join(dir, "plugin.so")
	require.NoError(t, os.WriteFile(notWasm, []byte("ELF"), 0o600))

	tests := []struct {
		name string
		args []string
	}{
		{"no input", nil},
		{"two inputs", []string{"a.wasm", "b.wasm"}},
		{"missing file", []string{filepath.Join(dir, "missing.wasm")}},
		{"not wasm", []string{notWasm}},
		{"unknown flag", []string{"--force", notWasm}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Error(t, execute(tt.args, &bytes.Buffer{}))
		})
	}

	err := execute([]string{notWasm}, &bytes.Buffer{})
	assert.ErrorIs(t, err, abi.ErrNotWasm)
}
