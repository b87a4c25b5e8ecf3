// Package validation checks configuration documents against the schemas held by a
// registry.SchemaRegistry.
package validation

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/reglet-dev/robohost/registry"
)

// ErrUnknownKind is returned for a document kind with no registered schema.
var ErrUnknownKind = errors.New("validation: no schema registered for document kind")

// DocumentValidator validates a decoded document against the schema of its kind.
type DocumentValidator interface {
	// Validate checks doc, which must be JSON-shaped (see parser.Normalize).
	Validate(kind string, doc any) (*ValidationResult, error)
}

// ValidationResult reports the outcome of a validation.
type ValidationResult struct {
	Valid  bool
	Errors []FieldError
}

// FieldError is one violation. Field is a JSON pointer into the document.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) String() string {
	field := e.Field
	if field == "" {
		field = "/"
	}
	return field + ": " + e.Message
}

// Err returns nil for a valid result and an error listing every violation otherwise.
func (r *ValidationResult) Err() error {
	if r == nil || r.Valid {
		return nil
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.String()
	}
	return fmt.Errorf("invalid document: %s", strings.Join(msgs, "; "))
}

// SchemaValidator implements DocumentValidator. Compiled schemas are cached per kind.
type SchemaValidator struct {
	registry registry.SchemaRegistry

	mu       sync.Mutex
	compiled map[string]*jsonschema.Schema
}

// NewSchemaValidator creates a validator backed by reg.
func NewSchemaValidator(reg registry.SchemaRegistry) *SchemaValidator {
	return &SchemaValidator{registry: reg, compiled: make(map[string]*jsonschema.Schema)}
}

// Validate implements DocumentValidator.
func (v *SchemaValidator) Validate(kind string, doc any) (*ValidationResult, error) {
	schema, err := v.schema(kind)
	if err != nil {
		return nil, err
	}

	err = schema.Validate(doc)
	if err == nil {
		return &ValidationResult{Valid: true}, nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return nil, fmt.Errorf("validate %s: %w", kind, err)
	}
	return &ValidationResult{Errors: leafErrors(verr)}, nil
}

func (v *SchemaValidator) schema(kind string) (*jsonschema.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if s, ok := v.compiled[kind]; ok {
		return s, nil
	}
	src, ok := v.registry.GetSchema(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	s, err := jsonschema.CompileString(kind+".schema.json", src)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", kind, err)
	}
	v.compiled[kind] = s
	return s, nil
}

// leafErrors flattens the error tree to its most specific causes.
func leafErrors(verr *jsonschema.ValidationError) []FieldError {
	var out []FieldError
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			out = append(out, FieldError{Field: e.InstanceLocation, Message: e.Message})
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(verr)

	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}
