// Package registry keeps the JSON schemas that configuration documents are validated
// against.
package registry

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/invopop/jsonschema"
)

// SchemaRegistry manages JSON schemas for document kinds.
type SchemaRegistry interface {
	// Register adds a schema for a document kind (e.g. "teleop").
	// model can be a struct (to generate schema) or a JSON schema string, []byte or map.
	Register(kind string, model any) error

	// GetSchema returns the JSON schema for a document kind.
	GetSchema(kind string) (string, bool)

	// List returns all registered document kinds, sorted.
	List() []string
}

// Registry implements SchemaRegistry using in-memory storage.
type Registry struct {
	schemas   map[string]string
	mu        sync.RWMutex
	reflector *jsonschema.Reflector
}

// RegistryOption configures the Registry.
type RegistryOption func(*Registry)

// WithAdditionalProperties controls whether schemas reflected from structs accept
// unknown keys. The default rejects them.
func WithAdditionalProperties(allow bool) RegistryOption {
	return func(r *Registry) {
		r.reflector.AllowAdditionalProperties = allow
	}
}

// NewRegistry creates a new schema registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		schemas: make(map[string]string),
		reflector: &jsonschema.Reflector{
			ExpandedStruct:             true,
			RequiredFromJSONSchemaTags: true,
		},
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register adds a schema for a document kind.
func (r *Registry) Register(kind string, model any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.schemas[kind]; exists {
		return fmt.Errorf("document kind already registered: %s", kind)
	}

	schema, err := r.schemaOf(model)
	if err != nil {
		return fmt.Errorf("register %s: %w", kind, err)
	}
	r.schemas[kind] = schema
	return nil
}

func (r *Registry) schemaOf(model any) (string, error) {
	switch v := model.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case map[string]any:
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to marshal schema map: %w", err)
		}
		return string(b), nil
	}

	t := reflect.TypeOf(model)
	if t == nil || !(t.Kind() == reflect.Struct || (t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct)) {
		return "", fmt.Errorf("cannot derive a schema from %T", model)
	}

	s := r.reflector.Reflect(model)
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal generated schema: %w", err)
	}
	return string(b), nil
}

// GetSchema retrieves the JSON Schema for a document kind.
func (r *Registry) GetSchema(kind string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[kind]
	return s, ok
}

// List returns all registered document kinds.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.schemas))
	for k := range r.schemas {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
