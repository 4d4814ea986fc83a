package consul_sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/consulvault/consul_sdk_go/internal/httpx"
	"github.com/consulvault/consul_sdk_go/pkg/agent"
	"github.com/consulvault/consul_sdk_go/pkg/kv"
)

// Client groups the typed clients for one agent and offers untyped access to
// any other /v1 endpoint.
type Client struct {
	KV    *kv.Client
	Agent *agent.Client

	http *httpx.Client
}

// New connects to the agent at addr.
func New(addr string, opts ...httpx.Option) (*Client, error) {
	cl, err := httpx.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("consul_sdk: %w", err)
	}
	return NewWithHTTPClient(cl), nil
}

// NewWithHTTPClient builds every sub-client on top of cl.
func NewWithHTTPClient(cl *httpx.Client) *Client {
	return &Client{
		KV:    kv.NewWithHTTPClient(cl),
		Agent: agent.NewWithHTTPClient(cl),
		http:  cl,
	}
}

// Addr returns the agent base URL.
func (c *Client) Addr() string {
	return c.http.BaseURL()
}

// Get issues GET /v1/<path> and returns the body. Failures are reported as
// in the kv package: errors.Is(err, kv.ErrRequestFailed) holds for all.
func (c *Client) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	resp, err := c.http.Do(ctx, &httpx.Request{
		Method: http.MethodGet,
		Path:   apiPath(path),
		Query:  query,
	})
	if err != nil {
		return nil, err
	}
	return httpx.ReadAllAndClose(resp.Body)
}

// GetString returns the body of GET /v1/<path> as text.
func (c *Client) GetString(ctx context.Context, path string) (string, error) {
	data, err := c.Get(ctx, path, nil)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// PutString issues PUT /v1/<path> with value as the body and returns the
// response body.
func (c *Client) PutString(ctx context.Context, path, value string) ([]byte, error) {
	resp, err := c.http.Do(ctx, &httpx.Request{
		Method: http.MethodPut,
		Path:   apiPath(path),
		Body:   strings.NewReader(value),
	})
	if err != nil {
		return nil, err
	}
	return httpx.ReadAllAndClose(resp.Body)
}

// GetJSON decodes the body of GET /v1/<path> into T.
func GetJSON[T any](ctx context.Context, c *Client, path string) (T, error) {
	var out T
	data, err := c.Get(ctx, path, nil)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(bytes.TrimSpace(data), &out); err != nil {
		return out, fmt.Errorf("consul_sdk: decode %s: %w", apiPath(path), err)
	}
	return out, nil
}

// PutJSON encodes value and issues PUT /v1/<path>.
func PutJSON[T any](ctx context.Context, c *Client, path string, value T) ([]byte, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("consul_sdk: encode value: %w", err)
	}
	return c.PutString(ctx, path, string(payload))
}

func apiPath(path string) string {
	return "/v1/" + strings.TrimLeft(path, "/")
}
