// Package mock provides an in-memory emulation of the Consul key/value store.
// It follows the agent's observable behaviour closely enough to stand in for
// a real agent in tests and in the sandbox server: prefix reads, key listing
// with separator folding, raw reads, and Raft-style create/modify indexes.
package mock

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tarantool/go-option"

	"github.com/consulvault/consul_sdk_go/internal/devseed"
	"github.com/consulvault/consul_sdk_go/pkg/kv"
)

type entry struct {
	value       []byte
	flags       uint64
	createIndex uint64
	modifyIndex uint64
	lockIndex   uint64
	session     string
}

// Mock implements an in-memory Consul KV store. It satisfies kv.Backend.
type Mock struct {
	mu    sync.RWMutex
	items map[string]*entry
	index uint64
}

var _ kv.Backend = (*Mock)(nil)

// New creates an empty store.
func New() *Mock {
	return &Mock{
		items: make(map[string]*entry),
	}
}

// Seed loads entries, typically decoded via devseed.LoadKVSeed.
func (m *Mock) Seed(entries []devseed.KVEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entries {
		key := strings.TrimLeft(e.Key, "/")
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("mock kv: seed entry missing key")
		}
		data, err := e.Bytes()
		if err != nil {
			return fmt.Errorf("mock kv: %w", err)
		}
		m.putLocked(key, data, option.Some(e.Flags))
	}
	return nil
}

// Index returns the current store index.
func (m *Mock) Index() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.index
}

// Entries returns the entry stored at key, or every entry under key when
// recurse is true, sorted by key.
func (m *Mock) Entries(ctx context.Context, key string, recurse bool) ([]kv.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []kv.Entry
	for _, k := range m.matchLocked(key, recurse) {
		out = append(out, toEntry(k, m.items[k]))
	}
	return out, nil
}

// Keys lists key names under prefix. When separator is set and non-empty,
// names are cut right after the first separator following the prefix and
// duplicates are folded.
func (m *Mock) Keys(ctx context.Context, prefix string, separator option.Generic[string]) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	sep := separator.UnwrapOr("")
	var (
		out  []string
		seen = make(map[string]struct{})
	)
	for _, k := range m.matchLocked(prefix, true) {
		name := k
		if sep != "" {
			if idx := strings.Index(k[len(prefix):], sep); idx >= 0 {
				name = k[:len(prefix)+idx+len(sep)]
			}
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out, nil
}

// Value returns the raw bytes of key and whether it exists.
func (m *Mock) Value(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	ent, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), ent.value...), true, nil
}

// Put writes value under key. Flags are kept from the previous revision when
// not provided.
func (m *Mock) Put(ctx context.Context, key string, value []byte, flags option.Generic[uint64]) (bool, error) {
	if strings.TrimSpace(key) == "" {
		return false, fmt.Errorf("mock kv: key is required")
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.putLocked(key, value, flags)
	return true, nil
}

// Delete removes key, or every key under it when recurse is true. Deleting a
// missing key succeeds.
func (m *Mock) Delete(ctx context.Context, key string, recurse bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	matched := m.matchLocked(key, recurse)
	for _, k := range matched {
		delete(m.items, k)
	}
	if len(matched) > 0 {
		m.index++
	}
	return true, nil
}

// Export snapshots the store in consul kv export form.
func (m *Mock) Export(ctx context.Context) ([]devseed.KVEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := m.matchLocked("", true)
	out := make([]devseed.KVEntry, 0, len(keys))
	for _, k := range keys {
		ent := m.items[k]
		out = append(out, devseed.NewKVEntry(k, ent.flags, ent.value))
	}
	return out, nil
}

// GetRaw implements kv.Backend with the agent's wire shapes.
func (m *Mock) GetRaw(ctx context.Context, key string, q kv.Query) (*kv.RawResponse, error) {
	var (
		body []byte
		err  error
	)
	switch q.Kind() {
	case kv.ResultRaw:
		var ok bool
		body, ok, err = m.Value(ctx, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, kv.ErrNotFound
		}
	case kv.ResultKeys:
		keys, err := m.Keys(ctx, key, q.Separator)
		if err != nil {
			return nil, err
		}
		if len(keys) == 0 {
			return nil, kv.ErrNotFound
		}
		if body, err = json.Marshal(keys); err != nil {
			return nil, err
		}
	default:
		entries, err := m.Entries(ctx, key, q.Recurse)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return nil, kv.ErrNotFound
		}
		if body, err = json.Marshal(entries); err != nil {
			return nil, err
		}
	}
	return &kv.RawResponse{
		Body: body,
		Meta: kv.QueryMeta{LastIndex: m.Index(), KnownLeader: true},
	}, nil
}

// PutRaw implements kv.Backend.
func (m *Mock) PutRaw(ctx context.Context, key string, value []byte, q kv.Query) ([]byte, error) {
	ok, err := m.Put(ctx, key, value, q.Flags)
	if err != nil {
		return nil, err
	}
	return json.Marshal(ok)
}

// DeleteRaw implements kv.Backend.
func (m *Mock) DeleteRaw(ctx context.Context, key string, q kv.Query) ([]byte, error) {
	ok, err := m.Delete(ctx, key, q.Recurse)
	if err != nil {
		return nil, err
	}
	return json.Marshal(ok)
}

func (m *Mock) putLocked(key string, value []byte, flags option.Generic[uint64]) {
	m.index++
	ent, ok := m.items[key]
	if !ok {
		ent = &entry{createIndex: m.index}
		m.items[key] = ent
	}
	ent.value = append([]byte(nil), value...)
	ent.flags = flags.UnwrapOr(ent.flags)
	ent.modifyIndex = m.index
}

// matchLocked returns the sorted keys equal to key, or prefixed by it when
// prefix is true.
func (m *Mock) matchLocked(key string, prefix bool) []string {
	if !prefix {
		if _, ok := m.items[key]; ok {
			return []string{key}
		}
		return nil
	}
	var keys []string
	for k := range m.items {
		if strings.HasPrefix(k, key) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func toEntry(key string, ent *entry) kv.Entry {
	e := kv.Entry{
		Key:         key,
		Flags:       ent.flags,
		CreateIndex: ent.createIndex,
		ModifyIndex: ent.modifyIndex,
		LockIndex:   ent.lockIndex,
		Session:     ent.session,
	}
	if len(ent.value) > 0 {
		e.Value = base64.StdEncoding.EncodeToString(ent.value)
	}
	return e
}
