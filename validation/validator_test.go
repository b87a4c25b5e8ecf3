package validation_test

import (
	"testing"

	"github.com/reglet-dev/robohost/registry"
	"github.com/reglet-dev/robohost/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type instance struct {
	Plugin string `json:"plugin" jsonschema:"required,minLength=1"`
	Kind   string `json:"kind" jsonschema:"required,enum=Gamepad,enum=Speaker"`
	Args   string `json:"args,omitempty"`
}

func newValidator(t *testing.T) *validation.SchemaValidator {
	t.Helper()
	reg := registry.NewRegistry()
	require.NoError(t, reg.Register("instance", instance{}))
	require.NoError(t, reg.Register("broken", `{"type": `))
	return validation.NewSchemaValidator(reg)
}

func TestSchemaValidator_Validate(t *testing.T) {
	t.Parallel()

	v := newValidator(t)

	tests := []struct {
		name       string
		doc        any
		valid      bool
		wantFields []string
	}{
		{
			name:  "valid",
			doc:   map[string]any{"plugin": "sim", "kind": "Gamepad"},
			valid: true,
		},
		{
			name:       "missing required",
			doc:        map[string]any{"kind": "Speaker"},
			wantFields: []string{""},
		},
		{
			name:       "bad enum and unknown key",
			doc:        map[string]any{"plugin": "sim", "kind": "Toaster", "colour": "red"},
			wantFields: []string{"", "/kind"},
		},
		{
			name:       "wrong type",
			doc:        map[string]any{"plugin": "sim", "kind": "Gamepad", "args": float64(3)},
			wantFields: []string{"/args"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res, err := v.Validate("instance", tt.doc)
			require.NoError(t, err)
			assert.Equal(t, tt.valid, res.Valid)

			if tt.valid {
				assert.Empty(t, res.Errors)
				assert.NoError(t, res.Err())
				return
			}

			fields := make([]string, len(res.Errors))
			for i, e := range res.Errors {
				fields[i] = e.Field
				assert.NotEmpty(t, e.Message)
			}
			assert.Equal(t, tt.wantFields, fields)
			assert.ErrorContains(t, res.Err(), "invalid document")
		})
	}
}

func TestSchemaValidator_Errors(t *testing.T) {
	t.Parallel()

	v := newValidator(t)

	_, err := v.Validate("nothing", map[string]any{})
	assert.ErrorIs(t, err, validation.ErrUnknownKind)

	_, err = v.Validate("broken", map[string]any{})
	assert.ErrorContains(t, err, "compile schema broken")
}
