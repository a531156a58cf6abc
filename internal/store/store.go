// Package store defines the key-path addressable document store the
// directory reads from and writes to.
//
// Paths look like "collection/key[/field...]". The first segment selects a
// collection, the second a document, and the rest address a field nested
// inside that document's JSON.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/clicker-admin/internal/domain"
)

// Store is a key-path addressable JSON document store
type Store interface {
	// Get returns the JSON value at path, or domain.ErrRecordNotFound.
	Get(ctx context.Context, path string) (json.RawMessage, error)
	// Set overwrites the subtree at path. A nil value deletes it.
	Set(ctx context.Context, path string, value any) error
	// Delete removes the subtree at path. Deleting a missing path is not an error.
	Delete(ctx context.Context, path string) error
	// Push appends value to collection under a new time-ordered key and returns the key.
	Push(ctx context.Context, collection string, value any) (string, error)
	// Snapshot returns every document of collection in ascending key order.
	Snapshot(ctx context.Context, collection string) ([]Document, error)
}

// Document is one keyed entry of a collection snapshot
type Document struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// Path is a parsed store path
type Path struct {
	Collection string
	Key        string
	Fields     []string
}

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// ParsePath splits a path that addresses at least one document.
func ParsePath(path string) (Path, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 {
		return Path{}, fmt.Errorf("%w: %q", domain.ErrInvalidPath, path)
	}
	for _, p := range parts {
		if p == "" {
			return Path{}, fmt.Errorf("%w: %q", domain.ErrInvalidPath, path)
		}
	}
	return Path{Collection: parts[0], Key: parts[1], Fields: parts[2:]}, nil
}

// Decode unmarshals a raw value into dst.
func Decode(raw json.RawMessage, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decoding document: %w", err)
	}
	return nil
}

// Unavailable wraps a driver failure as domain.ErrStoreUnavailable.
func Unavailable(op, path string, err error) error {
	return fmt.Errorf("%s %s: %w: %w", op, path, domain.ErrStoreUnavailable, err)
}
