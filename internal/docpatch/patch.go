// Package docpatch applies path-addressed edits to nested JSON documents.
//
// Documents are the generic shapes produced by encoding/json: map[string]any,
// []any and scalars. Every edit is copy-on-write: the containers along the
// edited path are shallow-copied and untouched branches are shared, so a
// caller holding the previous document never observes the change.
package docpatch

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxArrayPad bounds how far past the end of an array an index may write.
const MaxArrayPad = 64

// Patch addresses one leaf (or subtree) of a document by dotted path.
type Patch struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// InvalidPathError reports a path that cannot be applied to the document shape.
type InvalidPathError struct {
	Path    string
	Segment string
	Index   int
	Found   string
	Reason  string
}

func (e *InvalidPathError) Error() string {
	if e.Found != "" {
		return fmt.Sprintf("invalid path %q at segment %d (%q): %s, found %s", e.Path, e.Index, e.Segment, e.Reason, e.Found)
	}
	return fmt.Sprintf("invalid path %q at segment %d (%q): %s", e.Path, e.Index, e.Segment, e.Reason)
}

// SplitPath splits a dotted path into its segments.
func SplitPath(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, &InvalidPathError{Path: path, Reason: "path is empty"}
	}
	segments := strings.Split(path, ".")
	for i, seg := range segments {
		if seg == "" {
			return nil, &InvalidPathError{Path: path, Index: i, Reason: "empty segment"}
		}
	}
	return segments, nil
}

// Apply returns a new document with path set to value.
//
// Absent intermediate keys become empty mappings. Arrays are addressed by
// non-negative integer segments; an index past the end pads with nil, up to
// MaxArrayPad slots beyond the current length.
func Apply(doc map[string]any, path string, value any) (map[string]any, error) {
	segments, err := SplitPath(path)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		doc = map[string]any{}
	}
	out, err := setIn(doc, segments, 0, path, value)
	if err != nil {
		return nil, err
	}
	return out.(map[string]any), nil
}

// ApplyAll applies patches in order and stops at the first failure.
func ApplyAll(doc map[string]any, patches ...Patch) (map[string]any, error) {
	cur := doc
	if cur == nil {
		cur = map[string]any{}
	}
	for _, p := range patches {
		next, err := Apply(cur, p.Path, p.Value)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// Get reads the value at path. The second result is false when any segment is
// missing or the path runs through a scalar.
func Get(doc map[string]any, path string) (any, bool) {
	segments, err := SplitPath(path)
	if err != nil {
		return nil, false
	}
	var cur any = doc
	for _, seg := range segments {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			idx, ok := parseIndex(seg)
			if !ok || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

func setIn(node any, segments []string, i int, path string, value any) (any, error) {
	seg := segments[i]
	last := i == len(segments)-1

	switch container := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(container)+1)
		for k, v := range container {
			out[k] = v
		}
		if last {
			out[seg] = value
			return out, nil
		}
		child, ok := container[seg]
		if !ok || child == nil {
			child = map[string]any{}
		}
		updated, err := setIn(child, segments, i+1, path, value)
		if err != nil {
			return nil, err
		}
		out[seg] = updated
		return out, nil

	case []any:
		idx, ok := parseIndex(seg)
		if !ok {
			return nil, &InvalidPathError{Path: path, Segment: seg, Index: i, Found: "array", Reason: "array index must be a non-negative integer"}
		}
		size := len(container)
		if idx > size+MaxArrayPad {
			return nil, &InvalidPathError{Path: path, Segment: seg, Index: i, Found: "array", Reason: "array index out of range"}
		}
		if idx >= size {
			size = idx + 1
		}
		out := make([]any, size)
		copy(out, container)
		if last {
			out[idx] = value
			return out, nil
		}
		child := out[idx]
		if child == nil {
			child = map[string]any{}
		}
		updated, err := setIn(child, segments, i+1, path, value)
		if err != nil {
			return nil, err
		}
		out[idx] = updated
		return out, nil

	default:
		return nil, &InvalidPathError{Path: path, Segment: seg, Index: i, Found: kindOf(node), Reason: "cannot descend into a non-container value"}
	}
}

func parseIndex(seg string) (int, bool) {
	if seg == "" || seg[0] == '-' || seg[0] == '+' {
		return 0, false
	}
	idx, err := strconv.Atoi(seg)
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case float64, float32, int, int64, int32:
		return "number"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}
