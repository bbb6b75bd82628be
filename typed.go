// SPDX-License-Identifier: Apache-2.0

package changeset

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
)

// InvalidTagError is returned when a cs struct tag contains an invalid
// directive or value.
type InvalidTagError struct {
	// FieldName is the struct field name where the error occurred.
	FieldName string
	// Value is the offending directive.
	Value string
	// Message provides details about what went wrong.
	Message string
}

func (e *InvalidTagError) Error() string {
	return fmt.Sprintf("field %s: invalid cs tag: %s (value: %q)",
		e.FieldName, e.Message, e.Value)
}

func (e *InvalidTagError) Is(target error) bool {
	return target == ErrInvalidTag
}

// fieldNode is one declared field in a model's field tree. Leaf fields have
// no children.
type fieldNode struct {
	children map[string]*fieldNode
}

// Schema is the declared field set of a model type, derived from struct
// tags. It backs the merge's dynamic-field allowance: keys declared by a
// schema are assignable on a model even before they exist as literal
// entries.
//
// Field names are detected from yaml, json, and toml struct tags, in that
// order, falling back to the Go field name. The cs tag supports:
//   - cs:"field=name" - overrides field name detection
//   - cs:"-"          - excludes the field from the merge surface
//
// Example:
//
//	type User struct {
//		Name    string `yaml:"name"`
//		Age     int    `yaml:"age"`
//		Version int    `cs:"-"`
//	}
type Schema struct {
	root *fieldNode
}

// SchemaOf derives the [Schema] for model type T. Returns an error if a cs
// struct tag contains an invalid directive.
func SchemaOf[T any]() (*Schema, error) {
	root, err := buildFieldTree(reflect.TypeOf((*T)(nil)).Elem(), nil)
	if err != nil {
		return nil, err
	}
	return &Schema{root: root}, nil
}

// HasField reports whether the schema declares the given field. Dotted
// paths address nested declarations, e.g. "profile.age".
func (s *Schema) HasField(key string) bool {
	node := s.root
	for _, segment := range strings.Split(key, ".") {
		if node == nil || node.children == nil {
			return false
		}
		node = node.children[segment]
		if node == nil {
			return false
		}
	}
	return true
}

// Fields returns the schema's top-level field names in sorted order.
func (s *Schema) Fields() []string {
	if s.root == nil || s.root.children == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(s.root.children))
}

// buildFieldTree recursively builds the field tree from a type's struct
// tags. seen breaks cycles in self-referential types: a revisited struct
// contributes a leaf node.
func buildFieldTree(t reflect.Type, seen map[reflect.Type]bool) (*fieldNode, error) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	node := &fieldNode{}
	if t.Kind() != reflect.Struct || seen[t] {
		return node, nil
	}
	if seen == nil {
		seen = make(map[reflect.Type]bool)
	}
	seen[t] = true
	defer delete(seen, t)

	node.children = make(map[string]*fieldNode)
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		name, err := fieldName(field)
		if err != nil {
			return nil, err
		}
		if name == "" {
			// Excluded with cs:"-".
			continue
		}

		// Unwrap pointer, slice, and map types to get to the element type.
		fieldType := field.Type
		for fieldType.Kind() == reflect.Ptr || fieldType.Kind() == reflect.Slice || fieldType.Kind() == reflect.Map {
			fieldType = fieldType.Elem()
		}

		child, err := buildFieldTree(fieldType, seen)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}
		node.children[name] = child
	}
	return node, nil
}

// fieldName extracts the serialized field name from struct tags.
// Priority: cs:field override > yaml > json > toml > struct field name.
// Returns "" for fields excluded with cs:"-".
func fieldName(field reflect.StructField) (string, error) {
	if tag := field.Tag.Get("cs"); tag != "" {
		for _, part := range strings.Split(tag, ",") {
			part = strings.TrimSpace(part)
			switch {
			case part == "-":
				return "", nil
			case strings.HasPrefix(part, "field="):
				name := strings.TrimPrefix(part, "field=")
				if name == "" {
					return "", &InvalidTagError{
						FieldName: field.Name,
						Value:     part,
						Message:   "field name cannot be empty",
					}
				}
				return name, nil
			default:
				return "", &InvalidTagError{
					FieldName: field.Name,
					Value:     part,
					Message:   "unknown cs tag directive",
				}
			}
		}
	}

	for _, tagName := range []string{"yaml", "json", "toml"} {
		if tag := field.Tag.Get(tagName); tag != "" && tag != "-" {
			// Handle "name,omitempty,inline" format - take first part.
			if idx := strings.Index(tag, ","); idx != -1 {
				return tag[:idx], nil
			}
			return tag, nil
		}
	}

	return field.Name, nil
}

// Model is a map-backed merge target carrying the declared field set of T.
// It implements the host-model conventions the merge consults: declared
// fields are assignable before they exist as entries ([Fielded]), and writes
// accept dotted key paths, so [DirectSet] works as a path-safe SafeSet for
// models.
//
// Example:
//
//	type User struct {
//		Name string `yaml:"name"`
//		Age  int    `yaml:"age"`
//	}
//
//	model, _ := changeset.NewModel[User](map[string]any{"name": "Ada"})
//	// "age" is assignable even though the map has no such entry yet
//	changeset.MergeDeep(model, map[string]any{"age": 30}, changeset.Options{})
type Model[T any] struct {
	data   map[string]any
	schema *Schema
}

// NewModel wraps data, which may be nil, as a merge target for model type T.
func NewModel[T any](data map[string]any) (*Model[T], error) {
	schema, err := SchemaOf[T]()
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = make(map[string]any)
	}
	return &Model[T]{data: data, schema: schema}, nil
}

// Schema returns the model's declared field set.
func (m *Model[T]) Schema() *Schema {
	return m.schema
}

// HasField reports whether T declares the given field, dotted paths allowed.
func (m *Model[T]) HasField(key string) bool {
	return m.schema.HasField(key)
}

// Get returns the value at key, nil when absent. Dotted paths read through
// nested maps.
func (m *Model[T]) Get(key string) any {
	return GetPath(m.data, key)
}

// Set writes value at key, allocating nested maps for dotted paths.
func (m *Model[T]) Set(key string, value any) {
	SetPath(m.data, key, value)
}

// Keys returns the model's own enumerable keys in sorted order.
func (m *Model[T]) Keys() []string {
	return slices.Sorted(maps.Keys(m.data))
}

// Data returns the underlying map.
func (m *Model[T]) Data() map[string]any {
	return m.data
}
