// Package devseed reads and writes key/value snapshots in the JSON format
// produced by `consul kv export`. The same files seed the in-memory mocks and
// back the CLI export/import commands.
package devseed

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// KVEntry is one exported key. Value holds base64 text.
type KVEntry struct {
	Key   string `json:"key"`
	Flags uint64 `json:"flags"`
	Value string `json:"value"`
}

// NewKVEntry encodes raw into an exportable entry.
func NewKVEntry(key string, flags uint64, raw []byte) KVEntry {
	return KVEntry{
		Key:   key,
		Flags: flags,
		Value: base64.StdEncoding.EncodeToString(raw),
	}
}

// Bytes decodes the entry value.
func (e KVEntry) Bytes() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(e.Value)
	if err != nil {
		return nil, fmt.Errorf("devseed: decode value for %q: %w", e.Key, err)
	}
	return data, nil
}

// LoadKVSeed reads a seed file from disk.
func LoadKVSeed(path string) ([]KVEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("devseed: open %s: %w", path, err)
	}
	defer f.Close()

	entries, err := DecodeKV(f)
	if err != nil {
		return nil, fmt.Errorf("devseed: %s: %w", path, err)
	}
	return entries, nil
}

// DecodeKV parses and validates an export document.
func DecodeKV(r io.Reader) ([]KVEntry, error) {
	var entries []KVEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode kv export: %w", err)
	}
	for i, e := range entries {
		if strings.TrimSpace(e.Key) == "" {
			return nil, fmt.Errorf("entry %d: key is required", i)
		}
		if _, err := e.Bytes(); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// EncodeKV writes entries in the tab-indented layout used by consul kv export.
func EncodeKV(w io.Writer, entries []KVEntry) error {
	if entries == nil {
		entries = []KVEntry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "\t")
	enc.SetEscapeHTML(false)
	return enc.Encode(entries)
}
