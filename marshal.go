// SPDX-License-Identifier: Apache-2.0

package changeset

import "fmt"

// MarshalError is returned when unmarshaling a document fails. DocIndex 0 is
// the target document; change documents follow in argument order.
type MarshalError struct {
	// Err is the underlying error returned by a marshaling function.
	Err error
	// DocIndex tells which document the error occurred in.
	DocIndex int
}

func (e *MarshalError) Error() string {
	return fmt.Sprintf("cannot unmarshal document at position %d: %v", e.DocIndex, e.Err)
}

func (e *MarshalError) Unwrap() error {
	return e.Err
}

func (e *MarshalError) Is(target error) bool {
	return target == ErrMarshal
}

// MergeDeepMarshal applies serialized change documents to a serialized
// target document using the provided unmarshal and marshal functions.
//
// The target is unmarshaled once, each change document is merged into it
// left-to-right with [MergeDeep], and the result is marshaled back to bytes.
// Works with any serialization format (YAML, JSON, TOML, etc.) via custom
// marshal functions.
//
// Example:
//
//	import "github.com/goccy/go-yaml"
//
//	target := []byte("user:\n  name: Ada\n  role: admin")
//	change := []byte("user:\n  name: Grace")
//	result, _ := changeset.MergeDeepMarshal(changeset.Options{},
//		yaml.Unmarshal, yaml.Marshal, target, change)
//	// user.name updated, user.role preserved
func MergeDeepMarshal(
	opts Options,
	unmarshal func([]byte, any) error,
	marshal func(any) ([]byte, error),
	target []byte,
	changes ...[]byte,
) ([]byte, error) {
	var current any
	if err := unmarshal(target, &current); err != nil {
		return nil, &MarshalError{Err: err, DocIndex: 0}
	}

	for i, doc := range changes {
		var change any
		if err := unmarshal(doc, &change); err != nil {
			return nil, &MarshalError{Err: err, DocIndex: i + 1}
		}
		merged, err := MergeDeep(current, change, opts)
		if err != nil {
			return nil, err
		}
		current = merged
	}

	return marshal(current)
}
