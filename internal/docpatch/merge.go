package docpatch

import (
	"encoding/json"
	"errors"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch"
)

// ErrNotObject is returned when a patch result is not a JSON object.
var ErrNotObject = errors.New("patched document is not a JSON object")

// Merge applies an RFC 7386 merge patch and returns the new document.
func Merge(doc map[string]any, mergePatch []byte) (map[string]any, error) {
	original, err := marshalDoc(doc)
	if err != nil {
		return nil, err
	}
	merged, err := jsonpatch.MergePatch(original, mergePatch)
	if err != nil {
		return nil, fmt.Errorf("merge patch: %w", err)
	}
	return unmarshalDoc(merged)
}

// ApplyJSONPatch applies RFC 6902 operations and returns the new document.
func ApplyJSONPatch(doc map[string]any, ops []byte) (map[string]any, error) {
	patch, err := jsonpatch.DecodePatch(ops)
	if err != nil {
		return nil, fmt.Errorf("decode json patch: %w", err)
	}
	original, err := marshalDoc(doc)
	if err != nil {
		return nil, err
	}
	patched, err := patch.Apply(original)
	if err != nil {
		return nil, fmt.Errorf("apply json patch: %w", err)
	}
	return unmarshalDoc(patched)
}

// Diff returns the merge patch that turns from into to.
func Diff(from, to map[string]any) ([]byte, error) {
	a, err := marshalDoc(from)
	if err != nil {
		return nil, err
	}
	b, err := marshalDoc(to)
	if err != nil {
		return nil, err
	}
	return jsonpatch.CreateMergePatch(a, b)
}

func marshalDoc(doc map[string]any) ([]byte, error) {
	if doc == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

func unmarshalDoc(data []byte) (map[string]any, error) {
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	obj, ok := out.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return obj, nil
}
