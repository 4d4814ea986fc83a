package kv

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/tarantool/go-option"

	"github.com/consulvault/consul_sdk_go/internal/consulapi"
	"github.com/consulvault/consul_sdk_go/internal/httpx"
)

// Client provides access to the Consul key/value endpoints.
type Client struct {
	backend Backend
}

// New constructs a Client bound to the agent address ("host:port" or URL).
func New(addr string, opts ...httpx.Option) (*Client, error) {
	cl, err := httpx.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	return NewWithHTTPClient(cl), nil
}

// NewWithHTTPClient wraps an existing httpx.Client.
func NewWithHTTPClient(httpClient *httpx.Client) *Client {
	return &Client{backend: &httpBackend{client: httpClient}}
}

// NewWithBackend allows callers to supply a custom backend (e.g., mocks).
func NewWithBackend(b Backend) *Client {
	return &Client{backend: b}
}

// Get reads key. The shape of the Result follows the modifiers: raw bytes
// when WithRaw(true), key names when WithKeys(true), entries otherwise.
// A key that does not exist yields an empty Result, not an error.
func (c *Client) Get(ctx context.Context, key string, opts ...QueryOption) (*Result, error) {
	if c == nil || c.backend == nil {
		return nil, fmt.Errorf("kv: client is nil")
	}
	q := resolve(opts)
	key = normalizeKey(key)
	if key == "" && !q.Recurse && !q.Keys {
		return nil, ErrKeyRequired
	}

	resp, err := c.backend.GetRaw(ctx, key, q)
	if errors.Is(err, ErrNotFound) {
		return emptyResult(q.Kind()), nil
	}
	if err != nil {
		return nil, err
	}
	return decodeResult(q.Kind(), resp)
}

// Entries reads key and returns decoded entries regardless of raw/keys.
func (c *Client) Entries(ctx context.Context, key string, opts ...QueryOption) ([]Entry, error) {
	opts = append(slices.Clip(opts), func(o *QueryOptions) {
		o.Raw = option.None[bool]()
		o.Keys = option.None[bool]()
	})
	res, err := c.Get(ctx, key, opts...)
	if err != nil {
		return nil, err
	}
	return res.Entries, nil
}

// List returns every entry under prefix.
func (c *Client) List(ctx context.Context, prefix string, opts ...QueryOption) ([]Entry, error) {
	return c.Entries(ctx, prefix, append(slices.Clip(opts), WithRecurse(true))...)
}

// Keys lists key names under prefix, folded at separator when it is set.
func (c *Client) Keys(ctx context.Context, prefix string, separator option.Generic[string], opts ...QueryOption) ([]string, error) {
	opts = append(slices.Clip(opts), func(o *QueryOptions) {
		o.Raw = option.None[bool]()
		o.Keys = option.Some(true)
		o.Separator = separator
	})
	res, err := c.Get(ctx, prefix, opts...)
	if err != nil {
		return nil, err
	}
	return res.Keys, nil
}

// Raw returns the literal stored bytes of a single key.
func (c *Client) Raw(ctx context.Context, key string, opts ...QueryOption) ([]byte, error) {
	res, err := c.Get(ctx, key, append(slices.Clip(opts), WithRaw(true))...)
	if err != nil {
		return nil, err
	}
	return res.Raw, nil
}

// Put stores value under key and returns the server acknowledgement.
func (c *Client) Put(ctx context.Context, key string, value string, opts ...QueryOption) (bool, error) {
	return c.PutBytes(ctx, key, []byte(value), opts...)
}

// PutBytes stores a binary value under key.
func (c *Client) PutBytes(ctx context.Context, key string, value []byte, opts ...QueryOption) (bool, error) {
	if c == nil || c.backend == nil {
		return false, fmt.Errorf("kv: client is nil")
	}
	key = normalizeKey(key)
	if key == "" {
		return false, ErrKeyRequired
	}
	body, err := c.backend.PutRaw(ctx, key, value, resolve(opts))
	if err != nil {
		return false, err
	}
	return consulapi.DecodeBool(body)
}

// Delete removes key, or the whole prefix with WithRecurse(true).
func (c *Client) Delete(ctx context.Context, key string, opts ...QueryOption) (bool, error) {
	if c == nil || c.backend == nil {
		return false, fmt.Errorf("kv: client is nil")
	}
	q := resolve(opts)
	key = normalizeKey(key)
	if key == "" && !q.Recurse {
		return false, ErrKeyRequired
	}
	body, err := c.backend.DeleteRaw(ctx, key, q)
	if err != nil {
		return false, err
	}
	return consulapi.DecodeBool(body)
}

// PutJSON encodes value as JSON and stores it under key.
func PutJSON[T any](ctx context.Context, client *Client, key string, value T, opts ...QueryOption) (bool, error) {
	payload, err := jsonMarshal(value)
	if err != nil {
		return false, fmt.Errorf("kv: encode value: %w", err)
	}
	return client.PutBytes(ctx, key, payload, opts...)
}

// GetJSON reads a single key and decodes its value as JSON into T. It
// returns nil when the key does not exist.
func GetJSON[T any](ctx context.Context, client *Client, key string, opts ...QueryOption) (*T, error) {
	data, err := client.Raw(ctx, key, opts...)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	var value T
	if err := json.Unmarshal(trimmed, &value); err != nil {
		return nil, fmt.Errorf("kv: decode value of %q: %w", normalizeKey(key), err)
	}
	return &value, nil
}

func normalizeKey(key string) string {
	return strings.TrimLeft(key, "/")
}

func emptyResult(kind ResultKind) *Result {
	res := &Result{Kind: kind}
	switch kind {
	case ResultRaw:
		res.Raw = []byte{}
	case ResultKeys:
		res.Keys = []string{}
	default:
		res.Entries = []Entry{}
	}
	return res
}

func decodeResult(kind ResultKind, resp *RawResponse) (*Result, error) {
	if resp == nil {
		return emptyResult(kind), nil
	}
	res := emptyResult(kind)
	res.Meta = resp.Meta
	switch kind {
	case ResultRaw:
		res.Raw = append(res.Raw, resp.Body...)
	case ResultKeys:
		if _, err := consulapi.DecodeJSON(resp.Body, &res.Keys); err != nil {
			return nil, fmt.Errorf("kv: decode keys: %w", err)
		}
	default:
		if _, err := consulapi.DecodeJSON(resp.Body, &res.Entries); err != nil {
			return nil, fmt.Errorf("kv: decode entries: %w", err)
		}
	}
	return res, nil
}

func jsonMarshal[T any](value T) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// RawResponse is the undecoded body of a read plus its metadata.
type RawResponse struct {
	Body []byte
	Meta QueryMeta
}

// Backend performs the wire-level kv operations. GetRaw reports a missing
// key as ErrNotFound; PutRaw and DeleteRaw return the acknowledgement body.
type Backend interface {
	GetRaw(ctx context.Context, key string, q Query) (*RawResponse, error)
	PutRaw(ctx context.Context, key string, value []byte, q Query) ([]byte, error)
	DeleteRaw(ctx context.Context, key string, q Query) ([]byte, error)
}

type httpBackend struct {
	client *httpx.Client
}

func (b *httpBackend) GetRaw(ctx context.Context, key string, q Query) (*RawResponse, error) {
	if b == nil || b.client == nil {
		return nil, fmt.Errorf("kv: http backend not configured")
	}
	resp, err := b.client.Do(ctx, &httpx.Request{
		Method: http.MethodGet,
		Path:   kvPath(key),
		Params: []httpx.Param{
			httpx.NewParam("dc", q.Datacenter),
			flagParam("recurse", q.Recurse),
			flagParam("raw", q.Raw),
			flagParam("keys", q.Keys),
			httpx.NewParam("separator", q.Separator),
			httpx.NewParam("ns", q.Namespace),
		},
	})
	if err != nil {
		if httpx.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	data, err := httpx.ReadAllAndClose(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("kv: read response: %w", err)
	}
	meta := consulapi.ParseMeta(resp.Header)
	return &RawResponse{
		Body: data,
		Meta: QueryMeta{
			LastIndex:   meta.LastIndex,
			KnownLeader: meta.KnownLeader,
			LastContact: meta.LastContact,
		},
	}, nil
}

func (b *httpBackend) PutRaw(ctx context.Context, key string, value []byte, q Query) ([]byte, error) {
	if b == nil || b.client == nil {
		return nil, fmt.Errorf("kv: http backend not configured")
	}
	resp, err := b.client.Do(ctx, &httpx.Request{
		Method: http.MethodPut,
		Path:   kvPath(key),
		Params: []httpx.Param{
			httpx.NewParam("dc", q.Datacenter),
			httpx.NewParam("flags", formatUint(q.Flags)),
			httpx.NewParam("ns", q.Namespace),
		},
		Body: bytes.NewReader(value),
	})
	if err != nil {
		return nil, err
	}
	return httpx.ReadAllAndClose(resp.Body)
}

func (b *httpBackend) DeleteRaw(ctx context.Context, key string, q Query) ([]byte, error) {
	if b == nil || b.client == nil {
		return nil, fmt.Errorf("kv: http backend not configured")
	}
	resp, err := b.client.Do(ctx, &httpx.Request{
		Method: http.MethodDelete,
		Path:   kvPath(key),
		Params: []httpx.Param{
			httpx.NewParam("dc", q.Datacenter),
			flagParam("recurse", q.Recurse),
			httpx.NewParam("ns", q.Namespace),
		},
	})
	if err != nil {
		return nil, err
	}
	return httpx.ReadAllAndClose(resp.Body)
}

func kvPath(key string) string {
	return "/v1/kv/" + key
}

func flagParam(name string, on bool) httpx.Param {
	if !on {
		return httpx.NewParam(name, option.None[string]())
	}
	return httpx.NewParam(name, option.Some("true"))
}

func formatUint(v option.Generic[uint64]) option.Generic[string] {
	if !v.IsSome() {
		return option.None[string]()
	}
	return option.Some(strconv.FormatUint(v.UnwrapOr(0), 10))
}
