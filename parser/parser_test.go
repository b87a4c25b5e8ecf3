package parser_test

import (
	"testing"

	"github.com/reglet-dev/robohost/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		format parser.Format
		data   string
	}{
		{"toml", parser.FormatTOML, "initial_mode = \"base\"\n[plugins.sim]\npath = \"builtin:memory\"\nretries = 3\n"},
		{"yaml", parser.FormatYAML, "initial_mode: base\nplugins:\n  sim:\n    path: builtin:memory\n    retries: 3\n"},
		{"json", parser.FormatJSON, `{"initial_mode":"base","plugins":{"sim":{"path":"builtin:memory","retries":3}}}`},
	}

	want := map[string]any{
		"initial_mode": "base",
		"plugins": map[string]any{
			"sim": map[string]any{"path": "builtin:memory", "retries": float64(3)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, err := parser.New(tt.format)
			require.NoError(t, err)

			doc, err := p.Parse([]byte(tt.data))
			require.NoError(t, err)

			normalized, err := parser.Normalize(doc)
			require.NoError(t, err)
			assert.Equal(t, want, normalized)
		})
	}
}

func TestParsers_Errors(t *testing.T) {
	t.Parallel()

	for _, f := range []parser.Format{parser.FormatTOML, parser.FormatYAML, parser.FormatJSON} {
		p, err := parser.New(f)
		require.NoError(t, err)
		_, err = p.Parse([]byte("{[ = :"))
		assert.Error(t, err, f)

		doc, err := p.Parse(nil)
		require.NoError(t, err, f)
		assert.Empty(t, doc, f)
	}

	_, err := parser.New("ini")
	assert.Error(t, err)
}

func TestFormatOf(t *testing.T) {
	t.Parallel()

	tests := map[string]parser.Format{
		"teleop.toml":      parser.FormatTOML,
		"teleop.YAML":      parser.FormatYAML,
		"conf/teleop.yml":  parser.FormatYAML,
		"teleop.json":      parser.FormatJSON,
		"teleop":           parser.FormatTOML,
		"/etc/teleop.conf": parser.FormatTOML,
	}
	for path, want := range tests {
		assert.Equal(t, want, parser.FormatOf(path), path)
		assert.NotNil(t, parser.ForPath(path))
	}
}

func TestMerge(t *testing.T) {
	t.Parallel()

	dst := map[string]any{
		"initial_mode": "base",
		"security":     map[string]any{"level": "standard", "trust_plugins": false},
		"control_nodes": []any{
			map[string]any{"mode": "base"},
		},
	}
	src := map[string]any{
		"security":      map[string]any{"level": "strict"},
		"control_nodes": []any{},
		"speaker":       "voice",
	}

	got := parser.Merge(dst, src)
	assert.Equal(t, map[string]any{
		"initial_mode":  "base",
		"security":      map[string]any{"level": "strict", "trust_plugins": false},
		"control_nodes": []any{},
		"speaker":       "voice",
	}, got)

	assert.Equal(t, src, parser.Merge(nil, src))
}
