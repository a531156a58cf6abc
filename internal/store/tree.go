package store

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Document bodies are edited as generic JSON trees. Numbers are kept as
// json.Number so untouched fields round-trip without float drift.

func decodeTree(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	return v, nil
}

func toTree(value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encoding value: %w", err)
	}
	return decodeTree(raw)
}

// Lookup returns the value nested under fields inside doc.
func Lookup(doc json.RawMessage, fields []string) (json.RawMessage, bool, error) {
	if len(fields) == 0 {
		return doc, true, nil
	}
	tree, err := decodeTree(doc)
	if err != nil {
		return nil, false, err
	}
	cur := tree
	for _, f := range fields {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false, nil
		}
		if cur, ok = m[f]; !ok || cur == nil {
			return nil, false, nil
		}
	}
	raw, err := json.Marshal(cur)
	if err != nil {
		return nil, false, fmt.Errorf("encoding value: %w", err)
	}
	return raw, true, nil
}

// Assign returns doc with value written under fields, creating
// intermediate objects. A nil doc starts from an empty object.
func Assign(doc json.RawMessage, fields []string, value any) (json.RawMessage, error) {
	if len(fields) == 0 {
		return json.Marshal(value)
	}
	root := map[string]any{}
	if len(doc) > 0 {
		tree, err := decodeTree(doc)
		if err != nil {
			return nil, err
		}
		if m, ok := tree.(map[string]any); ok {
			root = m
		}
	}
	leaf, err := toTree(value)
	if err != nil {
		return nil, err
	}

	cur := root
	for _, f := range fields[:len(fields)-1] {
		next, ok := cur[f].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[f] = next
		}
		cur = next
	}
	cur[fields[len(fields)-1]] = leaf
	return json.Marshal(root)
}

// Remove returns doc without the subtree under fields. The second result
// is false when nothing is left of the document.
func Remove(doc json.RawMessage, fields []string) (json.RawMessage, bool, error) {
	if len(fields) == 0 {
		return nil, false, nil
	}
	tree, err := decodeTree(doc)
	if err != nil {
		return nil, false, err
	}
	root, ok := tree.(map[string]any)
	if !ok {
		return doc, true, nil
	}
	prune(root, fields)
	if len(root) == 0 {
		return nil, false, nil
	}
	raw, err := json.Marshal(root)
	if err != nil {
		return nil, false, fmt.Errorf("encoding document: %w", err)
	}
	return raw, true, nil
}

// prune deletes fields from m and drops parents left empty.
func prune(m map[string]any, fields []string) {
	if len(fields) == 1 {
		delete(m, fields[0])
		return
	}
	child, ok := m[fields[0]].(map[string]any)
	if !ok {
		return
	}
	prune(child, fields[1:])
	if len(child) == 0 {
		delete(m, fields[0])
	}
}
