// Package storetest provides store wrappers for exercising failure paths.
// It is imported only from tests.
package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/clicker-admin/internal/store"
)

// ErrInjected is the driver error returned by failing operations.
var ErrInjected = errors.New("injected failure")

// Op names a store operation
type Op string

const (
	OpGet      Op = "get"
	OpSet      Op = "set"
	OpDelete   Op = "delete"
	OpPush     Op = "push"
	OpSnapshot Op = "snapshot"
)

type rule struct {
	op     Op
	prefix string
}

// Faulty wraps a store and fails selected operations
type Faulty struct {
	store.Store

	mu    sync.Mutex
	rules []rule
	calls map[Op]int
}

// NewFaulty wraps inner.
func NewFaulty(inner store.Store) *Faulty {
	return &Faulty{Store: inner, calls: make(map[Op]int)}
}

// FailOn makes op fail for every path starting with prefix. For
// snapshots and pushes the prefix is matched against the collection.
func (f *Faulty) FailOn(op Op, prefix string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, rule{op: op, prefix: prefix})
}

// Heal removes every rule.
func (f *Faulty) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = nil
}

// Calls returns how many times op was invoked.
func (f *Faulty) Calls(op Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *Faulty) check(op Op, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	for _, r := range f.rules {
		if r.op == op && strings.HasPrefix(path, r.prefix) {
			return store.Unavailable(string(op), path, ErrInjected)
		}
	}
	return nil
}

func (f *Faulty) Get(ctx context.Context, path string) (json.RawMessage, error) {
	if err := f.check(OpGet, path); err != nil {
		return nil, err
	}
	return f.Store.Get(ctx, path)
}

func (f *Faulty) Set(ctx context.Context, path string, value any) error {
	if err := f.check(OpSet, path); err != nil {
		return err
	}
	return f.Store.Set(ctx, path, value)
}

func (f *Faulty) Delete(ctx context.Context, path string) error {
	if err := f.check(OpDelete, path); err != nil {
		return err
	}
	return f.Store.Delete(ctx, path)
}

func (f *Faulty) Push(ctx context.Context, collection string, value any) (string, error) {
	if err := f.check(OpPush, collection); err != nil {
		return "", err
	}
	return f.Store.Push(ctx, collection, value)
}

func (f *Faulty) Snapshot(ctx context.Context, collection string) ([]store.Document, error) {
	if err := f.check(OpSnapshot, collection); err != nil {
		return nil, err
	}
	return f.Store.Snapshot(ctx, collection)
}
