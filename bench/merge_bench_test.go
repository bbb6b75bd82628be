// SPDX-License-Identifier: Apache-2.0

package bench

import (
	"strconv"
	"testing"

	changeset "github.com/brzpegasus/ember-changeset"
)

const (
	numSections = 50
	numFields   = 20
	nestDepth   = 30
)

// generateWideTarget creates a wide document: many sections, each with a
// flat set of fields.
func generateWideTarget() map[string]any {
	doc := make(map[string]any, numSections)
	for i := 0; i < numSections; i++ {
		section := make(map[string]any, numFields)
		for j := 0; j < numFields; j++ {
			section["field"+strconv.Itoa(j)] = j
		}
		doc["section"+strconv.Itoa(i)] = section
	}
	return doc
}

// generateWideChange touches one field in every section.
func generateWideChange() map[string]any {
	doc := make(map[string]any, numSections)
	for i := 0; i < numSections; i++ {
		doc["section"+strconv.Itoa(i)] = map[string]any{"field0": -1}
	}
	return doc
}

// generateDeep creates a chain of single-key maps ending in leaf.
func generateDeep(leaf any) map[string]any {
	doc := map[string]any{"leaf": leaf}
	for i := 0; i < nestDepth; i++ {
		doc = map[string]any{"nested": doc}
	}
	return doc
}

func deepClone(v any) any {
	switch o := v.(type) {
	case map[string]any:
		clone := make(map[string]any, len(o))
		for k, val := range o {
			clone[k] = deepClone(val)
		}
		return clone
	case []any:
		clone := make([]any, len(o))
		for i, val := range o {
			clone[i] = deepClone(val)
		}
		return clone
	default:
		return v
	}
}

func BenchmarkMergeDeepWide(b *testing.B) {
	target := generateWideTarget()
	change := generateWideChange()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		clone := deepClone(target)
		b.StartTimer()

		if _, err := changeset.MergeDeep(clone, change, changeset.Options{}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMergeDeepNested(b *testing.B) {
	target := generateDeep(1)
	change := generateDeep(2)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		clone := deepClone(target)
		b.StartTimer()

		if _, err := changeset.MergeDeep(clone, change, changeset.Options{}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMergeDeepChanges(b *testing.B) {
	target := generateWideTarget()
	change := make(map[string]any, numSections)
	for i := 0; i < numSections; i++ {
		change["section"+strconv.Itoa(i)] = map[string]any{
			"field0": changeset.NewChange(-1),
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		clone := deepClone(target)
		b.StartTimer()

		if _, err := changeset.MergeDeep(clone, change, changeset.Options{}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMergeDeepSmall(b *testing.B) {
	target := map[string]any{"a": map[string]any{"x": 1, "y": 2}, "tags": []any{"p", "q"}}
	change := map[string]any{"a": map[string]any{"x": 9}, "tags": []any{"r"}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		clone := deepClone(target)
		if _, err := changeset.MergeDeep(clone, change, changeset.Options{}); err != nil {
			b.Fatal(err)
		}
	}
}
