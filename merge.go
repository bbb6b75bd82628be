// SPDX-License-Identifier: Apache-2.0

// Package changeset implements the deep merge used to commit pending changes
// onto model-like targets.
//
// MergeDeep mutates a target composite value with the contents of a source
// composite value, preserving already-merged nested objects instead of
// overwriting them wholesale. Keys that would shadow reserved or inherited
// properties are guarded, and property access is pluggable so the merge works
// over proxy-like targets whose membership is decided by interception rather
// than map lookup.
package changeset

import (
	"errors"
	"maps"
	"reflect"
	"regexp"
	"slices"
	"strings"
	"time"
)

// Sentinel errors for simple error checking with [errors.Is].
var (
	// ErrMergeFailed indicates a merge traversal failed. It carries no
	// structured cause, and the target may be left partially mutated.
	ErrMergeFailed = errors.New("merge failed")
	// ErrMarshal indicates a marshaling or unmarshaling operation failed.
	ErrMarshal = errors.New("marshal error")
	// ErrInvalidTag indicates a cs struct tag contains an invalid directive.
	ErrInvalidTag = errors.New("invalid tag")
)

// Change is a pending-change wrapper: a tagged value carrying a single
// uncommitted field update. When a Change appears as a property value in a
// source document, only its payload is written to the target, never the
// wrapper itself.
type Change struct {
	Value any
}

// NewChange wraps value as a pending change.
func NewChange(value any) *Change {
	return &Change{Value: value}
}

// GetFunc reads a property from an object.
type GetFunc func(obj any, key string) any

// SetFunc writes a property on an object and returns the written value.
type SetFunc func(obj any, key string, value any) any

// Options configures merge behavior.
//
// The zero value is valid: properties are read and written by direct access
// ([DirectGet], [DirectSet]), and guarded keys are silently skipped. Supplying
// a SafeSet enables dotted-path resolution of guarded keys; the SafeSet is
// expected to understand dotted key paths such as "a.b.c" (see [SetPath]).
type Options struct {
	// SafeGet overrides how properties are read from target and source.
	SafeGet GetFunc
	// SafeSet overrides how properties are written to the target, and is the
	// write path for dotted key paths produced by guarded-key resolution.
	SafeSet SetFunc
}

// Getter is implemented by merge participants whose properties are read by
// interception rather than map lookup.
type Getter interface {
	Get(key string) any
}

// Setter is the write-side counterpart of [Getter].
type Setter interface {
	Set(key string, value any)
}

// Keyer enumerates an object's own enumerable property keys. The returned
// order is the order the merge visits them in.
type Keyer interface {
	Keys() []string
}

// Fielded is the host-model convention for dynamically declared fields: keys
// reported by HasField are legitimate assignment targets even when they do
// not yet exist as literal properties of the target.
type Fielded interface {
	HasField(key string) bool
}

// Proxied is implemented by targets whose property membership is decided
// dynamically. HasProperty reports reachable keys, own or inherited;
// OwnsProperty reports own enumerable data fields only.
type Proxied interface {
	HasProperty(key string) bool
	OwnsProperty(key string) bool
}

// Reserved prototype-chain names from the original object model. They are
// reachable on every target but never own data fields, so writes through
// them are guarded.
var reservedKeys = map[string]struct{}{
	"__proto__":   {},
	"constructor": {},
	"prototype":   {},
}

// DirectGet reads by direct access: map index for map[string]any, Get for
// [Getter] implementations, nil otherwise. It is the default SafeGet.
func DirectGet(obj any, key string) any {
	switch o := obj.(type) {
	case map[string]any:
		return o[key]
	case Getter:
		return o.Get(key)
	}
	return nil
}

// DirectSet writes by direct access: map index for map[string]any, Set for
// [Setter] implementations, silent no-op otherwise. It is the default
// SafeSet for ordinary assignment. Passing it explicitly as Options.SafeSet
// enables guarded-key resolution for targets whose Set understands dotted
// key paths, such as [Model].
func DirectSet(obj any, key string, value any) any {
	switch o := obj.(type) {
	case map[string]any:
		o[key] = value
	case Setter:
		o.Set(key, value)
	}
	return value
}

// MergeDeep merges source into target and returns the merged value.
//
// When target and source disagree on array-ness, or are both arrays, source
// is returned unchanged and target is untouched: arrays are replaced
// wholesale, never merged element-wise. Otherwise target is mutated in place
// through the configured accessors and returned. Source is never mutated.
//
// Any failure during traversal, including a panicking custom accessor,
// surfaces as [ErrMergeFailed]. There is no rollback: the target may be
// partially mutated when a merge fails.
//
// Cyclic values are not detected and will exhaust the stack. A merge is
// synchronous and performs no internal locking; callers must not touch
// target concurrently.
func MergeDeep(target, source any, opts Options) (merged any, err error) {
	defer func() {
		if recover() != nil {
			merged, err = nil, ErrMergeFailed
		}
	}()

	m := &merger{
		get:      opts.SafeGet,
		set:      opts.SafeSet,
		pathSafe: opts.SafeSet != nil,
	}
	if m.get == nil {
		m.get = DirectGet
	}
	if m.set == nil {
		m.set = DirectSet
	}

	targetIsArray := isArray(target)
	if targetIsArray != isArray(source) {
		return source, nil
	}
	if targetIsArray {
		return source, nil
	}
	return m.mergeTargetAndSource(target, source), nil
}

// merger carries one merge invocation's accessors through the whole call
// tree. Re-entrant merges share the same configuration.
type merger struct {
	get      GetFunc
	set      SetFunc
	pathSafe bool
}

func (m *merger) mergeTargetAndSource(target, source any) any {
	for _, key := range ownKeys(source) {
		if propertyIsUnsafe(target, key) {
			if !m.pathSafe {
				continue
			}
			// The guarded key cannot be assigned directly; locate pending
			// changes anywhere in source and route them through dotted paths.
			paths := make(map[string]any)
			m.buildPathToValue(source, nil, paths)
			for _, path := range slices.Sorted(maps.Keys(paths)) {
				m.set(target, path, paths[path])
			}
			continue
		}

		next := m.get(source, key)
		if m.hasProperty(target, key) && isMergeable(next) && !hasOwnValue(next) {
			m.set(target, key, m.mergeTargetAndSource(m.get(target, key), next))
			continue
		}
		if ch, ok := next.(*Change); ok {
			m.set(target, key, ch.Value)
			continue
		}
		m.set(target, key, next)
	}
	return target
}

// buildPathToValue walks subtree depth-first, recording a dotted path for
// every composite that carries an own value field. A wrapper is a leaf: its
// payload is taken as-is even when the payload is itself composite. Colliding
// paths resolve last-write-wins in traversal order.
func (m *merger) buildPathToValue(subtree any, prefix []string, acc map[string]any) {
	for _, key := range ownKeys(subtree) {
		possible := m.get(subtree, key)
		if payload, ok := ownValue(possible); ok {
			acc[strings.Join(append(prefix, key), ".")] = payload
			continue
		}
		if isMergeable(possible) {
			m.buildPathToValue(possible, append(prefix, key), acc)
		}
	}
}

// hasProperty reports whether target already has key, deciding between
// recursive merge and plain assignment.
func (m *merger) hasProperty(target any, key string) bool {
	switch t := target.(type) {
	case map[string]any:
		_, ok := t[key]
		return ok
	case Proxied:
		return keyReachable(t, key)
	}
	return m.get(target, key) != nil
}

// propertyIsUnsafe decides whether assigning key on target must be guarded.
//
// Dynamically declared host-model fields are assignable unconditionally.
// Otherwise a key is unsafe when it is reachable on target without being an
// own enumerable data field: wholly absent keys are safe to introduce, own
// enumerable keys are safe to overwrite, and everything in between (reserved
// names, inherited-only keys) would shadow state the caller never meant to
// touch.
func propertyIsUnsafe(target any, key string) bool {
	if hasDynamicField(target, key) {
		return false
	}
	return keyReachable(target, key) && !ownsKey(target, key)
}

// hasDynamicField consults the [Fielded] convention. A panicking
// implementation counts as not declaring the field.
func hasDynamicField(target any, key string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	f, fielded := target.(Fielded)
	return fielded && f.HasField(key)
}

// keyReachable is the `in`-style existence check: own keys, inherited keys,
// and reserved names all count. Implementations that panic degrade to "not
// present".
func keyReachable(target any, key string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	if _, reserved := reservedKeys[key]; reserved {
		return true
	}
	switch t := target.(type) {
	case map[string]any:
		_, ok := t[key]
		return ok
	case Proxied:
		return t.HasProperty(key)
	}
	return false
}

// ownsKey reports whether key is an own enumerable data field of target.
func ownsKey(target any, key string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	if _, reserved := reservedKeys[key]; reserved {
		return false
	}
	switch t := target.(type) {
	case map[string]any:
		_, ok := t[key]
		return ok
	case Proxied:
		return t.OwnsProperty(key)
	}
	return false
}

// ownKeys returns an object's own enumerable keys in deterministic order.
// Maps are visited in sorted key order; [Keyer] implementations control
// their own order. Scalars have no keys.
func ownKeys(v any) []string {
	switch o := v.(type) {
	case map[string]any:
		return slices.Sorted(maps.Keys(o))
	case Keyer:
		return o.Keys()
	}
	return nil
}

// ownValue reports whether v structurally carries an own value field and
// returns its unwrapped payload.
func ownValue(v any) (any, bool) {
	switch o := v.(type) {
	case *Change:
		return o.Value, true
	case map[string]any:
		if payload, ok := o["value"]; ok {
			return payload, true
		}
	}
	return nil, false
}

func hasOwnValue(v any) bool {
	_, ok := ownValue(v)
	return ok
}

// isMergeable reports whether v is a composite that participates in
// recursive merging. Arrays are leaf-assigned wholesale, and Date/RegExp
// analogs are opaque leaves: merging them property-by-property would
// corrupt them.
func isMergeable(v any) bool {
	switch v.(type) {
	case nil, *Change, time.Time, *time.Time, *regexp.Regexp:
		return false
	case map[string]any, Keyer:
		return true
	}
	return false
}

// isArray reports whether v is a finite ordered sequence. The reflect check
// covers concrete slice types beyond []any, e.g. the []map[string]any that
// TOML decoding produces for arrays of tables.
func isArray(v any) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return true
	}
	return false
}
