package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// MergeJSON overlays the top-level fields of patch onto base. A null field in
// patch removes the field.
func MergeJSON(base, patch []byte) ([]byte, error) {
	dst := map[string]json.RawMessage{}
	if len(base) > 0 {
		if err := json.Unmarshal(base, &dst); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
	}
	src := map[string]json.RawMessage{}
	if err := json.Unmarshal(patch, &src); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	for k, v := range src {
		if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			delete(dst, k)
			continue
		}
		dst[k] = v
	}
	return json.Marshal(dst)
}

// CheckObject rejects anything that is not a JSON object.
func CheckObject(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return ErrInvalidDocument
	}
	return nil
}

// Matches reports whether the document satisfies every filter. Values are
// compared by their JSON encoding.
func Matches(data []byte, filters []Filter) (bool, error) {
	if len(filters) == 0 {
		return true, nil
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	for _, f := range filters {
		got, ok := lookup(doc, f.Field)
		if !ok {
			return false, nil
		}
		a, err := json.Marshal(got)
		if err != nil {
			return false, err
		}
		b, err := json.Marshal(f.Value)
		if err != nil {
			return false, fmt.Errorf("encode filter %q: %w", f.Field, err)
		}
		if !bytes.Equal(a, b) {
			return false, nil
		}
	}
	return true, nil
}

func lookup(doc map[string]any, path string) (any, bool) {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}
