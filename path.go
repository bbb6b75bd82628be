// SPDX-License-Identifier: Apache-2.0

package changeset

import "strings"

// SetPath writes value into obj at a dotted key path, allocating
// intermediate maps as needed. A path segment that exists but is not a map
// is replaced by a fresh map so the write can land. Keys without dots behave
// like plain assignment, which makes SetPath a ready-made Options.SafeSet
// for targets that are plain nested maps.
func SetPath(obj any, key string, value any) any {
	current, ok := obj.(map[string]any)
	if !ok {
		return value
	}
	segments := strings.Split(key, ".")
	for _, segment := range segments[:len(segments)-1] {
		next, ok := current[segment].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[segment] = next
		}
		current = next
	}
	current[segments[len(segments)-1]] = value
	return value
}

// GetPath reads the value at a dotted key path, returning nil when any
// segment is missing or not a map. It satisfies [GetFunc].
func GetPath(obj any, key string) any {
	current := obj
	for _, segment := range strings.Split(key, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[segment]
	}
	return current
}
