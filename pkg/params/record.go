package params

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// Record is a typed key/value bag. Keys are unique, insertion order is irrelevant.
// Safe for concurrent use.
type Record struct {
	typeName string

	mu   sync.RWMutex
	data map[string]any
}

var _ domain.ParameterSource = (*Record)(nil)

// New creates an empty record for the given type name.
func New(typeName string) *Record {
	return &Record{
		typeName: typeName,
		data:     make(map[string]any),
	}
}

// FromMap creates a record holding a copy of m.
func FromMap(typeName string, m map[string]any) *Record {
	r := New(typeName)
	for k, v := range m {
		r.data[k] = v
	}
	return r
}

// FromStruct flattens the exported fields of v into a record.
// Field names follow the `mapstructure` tags of v when present.
func FromStruct(typeName string, v any) (*Record, error) {
	m := make(map[string]any)
	if err := mapstructure.Decode(v, &m); err != nil {
		return nil, fmt.Errorf("failed to flatten %T into %s: %w", v, typeName, err)
	}
	return FromMap(typeName, m), nil
}

// TypeName returns the type tag of the record. A nil record has an empty type name.
func (r *Record) TypeName() string {
	if r == nil {
		return ""
	}
	return r.typeName
}

// Add inserts or replaces a value.
// It fails with domain.ErrDuplicateKey when overwrite is false and the key exists.
func (r *Record) Add(key string, value any, overwrite bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.data[key]; exists && !overwrite {
		return fmt.Errorf("%w: %q in %s", domain.ErrDuplicateKey, key, r.typeName)
	}
	r.data[key] = value
	return nil
}

// Exists reports whether the key is present.
func (r *Record) Exists(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.data[key]
	return ok
}

// Get returns the value stored under key.
// When the key is absent it fails with domain.ErrMissingKey if mustExist is set,
// otherwise it returns nil.
func (r *Record) Get(key string, mustExist bool) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.data[key]
	if !ok && mustExist {
		return nil, fmt.Errorf("%w: %q in %s", domain.ErrMissingKey, key, r.typeName)
	}
	return v, nil
}

// Get returns the value stored under key as T.
// An absent key yields the zero value of T unless mustExist is set.
// A value of another type fails with domain.ErrInvalidParameter.
func Get[T any](r *Record, key string, mustExist bool) (T, error) {
	var zero T
	v, err := r.Get(key, mustExist)
	if err != nil || v == nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %q in %s holds %T, not %T", domain.ErrInvalidParameter, key, r.typeName, v, zero)
	}
	return typed, nil
}

// Remove deletes a key. Removing an absent key fails with domain.ErrMissingKey only if mustExist is set.
func (r *Record) Remove(key string, mustExist bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.data[key]; !ok {
		if mustExist {
			return fmt.Errorf("%w: %q in %s", domain.ErrMissingKey, key, r.typeName)
		}
		return nil
	}
	delete(r.data, key)
	return nil
}

// Update merges every entry of other into r using Add semantics per key.
// The merge is all-or-nothing: on domain.ErrDuplicateKey r is left unchanged.
func (r *Record) Update(other *Record, overwrite bool) error {
	if other == nil || other == r {
		if other == r && !overwrite && r.Len() > 0 {
			return fmt.Errorf("%w: record merged into itself", domain.ErrDuplicateKey)
		}
		return nil
	}
	return r.Merge(other.Snapshot(), overwrite)
}

// Merge applies data to r with the same all-or-nothing semantics as Update.
func (r *Record) Merge(data map[string]any, overwrite bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !overwrite {
		for _, key := range sortedKeys(data) {
			if _, exists := r.data[key]; exists {
				return fmt.Errorf("%w: %q in %s", domain.ErrDuplicateKey, key, r.typeName)
			}
		}
	}
	for k, v := range data {
		r.data[k] = v
	}
	return nil
}

// Len returns the number of keys.
func (r *Record) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

// Keys returns the keys in lexical order.
func (r *Record) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.data)
}

// Snapshot returns a shallow copy of the data. A nil record yields nil.
func (r *Record) Snapshot() map[string]any {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]any, len(r.data))
	for k, v := range r.data {
		out[k] = v
	}
	return out
}

// Decode copies the record into a struct (or map) using mapstructure.
// Weakly typed input is accepted so values decoded from JSON or YAML fit numeric fields.
func (r *Record) Decode(target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to build decoder for %s: %w", r.typeName, err)
	}
	if err := decoder.Decode(r.Snapshot()); err != nil {
		return fmt.Errorf("failed to decode %s: %w", r.typeName, err)
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
