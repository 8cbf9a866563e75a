package schema

import (
	"fmt"
	"sort"
	"sync"
)

// Registry manages all resource schemas in the application
type Registry struct {
	schemas map[string]*ResourceSchema
	mu      sync.RWMutex
}

// NewRegistry creates a new schema registry
func NewRegistry() *Registry {
	return &Registry{
		schemas: make(map[string]*ResourceSchema),
	}
}

// Register registers a new resource schema
func (r *Registry) Register(schema *ResourceSchema) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.schemas[schema.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateResource, schema.Name)
	}

	if err := validateStructural(schema); err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", schema.Name, err)
	}

	r.schemas[schema.Name] = schema
	return nil
}

// Get retrieves a resource schema by name
func (r *Registry) Get(name string) (*ResourceSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schema, exists := r.schemas[name]
	return schema, exists
}

// All returns a copy of all registered schemas
func (r *Registry) All() map[string]*ResourceSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*ResourceSchema, len(r.schemas))
	for k, v := range r.schemas {
		result[k] = v
	}
	return result
}

// List returns the registered resource names in sorted order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered schemas
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.schemas)
}

// ValidateAll checks every relationship against the registered schemas.
// Forward references are allowed during Register, so this runs once all
// resources are known.
func (r *Registry) ValidateAll() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range sortedKeys(r.schemas) {
		if err := validateRelationships(r.schemas[name], r.schemas); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys(m map[string]*ResourceSchema) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
