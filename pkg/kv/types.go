package kv

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/tarantool/go-option"

	"github.com/consulvault/consul_sdk_go/internal/httpx"
)

// Entry is one stored key/value pair as returned by Consul. Value holds the
// base64 text received on the wire.
type Entry struct {
	Key         string `json:"Key"`
	Value       string `json:"Value"`
	Flags       uint64 `json:"Flags"`
	CreateIndex uint64 `json:"CreateIndex"`
	ModifyIndex uint64 `json:"ModifyIndex"`
	LockIndex   uint64 `json:"LockIndex"`
	Session     string `json:"Session,omitempty"`
}

// Bytes decodes the entry value.
func (e Entry) Bytes() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(e.Value)
	if err != nil {
		return nil, fmt.Errorf("kv: decode value of %q: %w", e.Key, err)
	}
	return data, nil
}

// Text decodes the entry value as a string.
func (e Entry) Text() (string, error) {
	data, err := e.Bytes()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Locked reports whether a session holds the key.
func (e Entry) Locked() bool {
	return e.Session != ""
}

// ResultKind identifies which field of a Result is populated.
type ResultKind int

const (
	// ResultEntries is the default shape: decoded entries.
	ResultEntries ResultKind = iota
	// ResultKeys is produced when the keys modifier is set.
	ResultKeys
	// ResultRaw is produced when the raw modifier is set.
	ResultRaw
)

func (k ResultKind) String() string {
	switch k {
	case ResultEntries:
		return "entries"
	case ResultKeys:
		return "keys"
	case ResultRaw:
		return "raw"
	default:
		return fmt.Sprintf("ResultKind(%d)", int(k))
	}
}

// Result is the outcome of a read. Exactly one of Entries, Keys or Raw is
// meaningful, selected by Kind.
type Result struct {
	Kind    ResultKind
	Entries []Entry
	Keys    []string
	Raw     []byte
	Meta    QueryMeta
}

// Len returns the number of entries or keys, or the byte length of a raw value.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	switch r.Kind {
	case ResultKeys:
		return len(r.Keys)
	case ResultRaw:
		return len(r.Raw)
	default:
		return len(r.Entries)
	}
}

// Empty reports whether the read matched nothing.
func (r *Result) Empty() bool {
	return r.Len() == 0
}

// QueryMeta carries the X-Consul-* response headers of a read.
type QueryMeta struct {
	LastIndex   uint64
	KnownLeader bool
	LastContact time.Duration
}

// QueryOptions holds the optional modifiers accepted by the kv endpoint. A
// field left at its zero value is "not provided" and is never sent.
type QueryOptions struct {
	Datacenter option.Generic[string]
	Namespace  option.Generic[string]
	Recurse    option.Generic[bool]
	Raw        option.Generic[bool]
	Keys       option.Generic[bool]
	Separator  option.Generic[string]
	Flags      option.Generic[uint64]
}

// QueryOption configures QueryOptions.
type QueryOption func(*QueryOptions)

// WithDatacenter targets a specific datacenter.
func WithDatacenter(dc string) QueryOption {
	return func(o *QueryOptions) {
		o.Datacenter = option.Some(dc)
	}
}

// WithNamespace targets a namespace.
func WithNamespace(ns string) QueryOption {
	return func(o *QueryOptions) {
		o.Namespace = option.Some(ns)
	}
}

// WithRecurse matches every key sharing the given prefix. On delete it
// removes the whole prefix.
func WithRecurse(v bool) QueryOption {
	return func(o *QueryOptions) {
		o.Recurse = option.Some(v)
	}
}

// WithRaw returns the literal value of a single key instead of entries.
func WithRaw(v bool) QueryOption {
	return func(o *QueryOptions) {
		o.Raw = option.Some(v)
	}
}

// WithKeys returns only key names.
func WithKeys(v bool) QueryOption {
	return func(o *QueryOptions) {
		o.Keys = option.Some(v)
	}
}

// WithSeparator folds key names at the first separator after the prefix.
// Only meaningful together with WithKeys.
func WithSeparator(sep string) QueryOption {
	return func(o *QueryOptions) {
		o.Separator = option.Some(sep)
	}
}

// WithFlags attaches the opaque flags value to a write.
func WithFlags(flags uint64) QueryOption {
	return func(o *QueryOptions) {
		o.Flags = option.Some(flags)
	}
}

// Query is the resolved form of QueryOptions handed to a Backend. Consul
// treats recurse, raw and keys as presence flags, so they collapse to plain
// booleans here.
type Query struct {
	Datacenter option.Generic[string]
	Namespace  option.Generic[string]
	Recurse    bool
	Raw        bool
	Keys       bool
	Separator  option.Generic[string]
	Flags      option.Generic[uint64]
}

func resolve(opts []QueryOption) Query {
	var o QueryOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return Query{
		Datacenter: o.Datacenter,
		Namespace:  o.Namespace,
		Recurse:    o.Recurse.UnwrapOr(false),
		Raw:        o.Raw.UnwrapOr(false),
		Keys:       o.Keys.UnwrapOr(false),
		Separator:  o.Separator,
		Flags:      o.Flags,
	}
}

// Kind returns the result shape a read with q produces.
func (q Query) Kind() ResultKind {
	switch {
	case q.Raw:
		return ResultRaw
	case q.Keys:
		return ResultKeys
	default:
		return ResultEntries
	}
}

// HTTPError is returned for any non-2xx response other than a missing key.
type HTTPError = httpx.HTTPError

var (
	// ErrRequestFailed matches every transport or status failure.
	ErrRequestFailed = httpx.ErrRequestFailed
	// ErrNotFound is reported by a Backend when the key does not exist. The
	// Client turns it into an empty Result.
	ErrNotFound = errors.New("kv: key not found")
	// ErrKeyRequired is returned when a key is empty after stripping slashes.
	ErrKeyRequired = errors.New("kv: key is required")
)
