// Package agent exposes the service and check registration endpoints of the
// local Consul agent (/v1/agent/...).
package agent

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/consulvault/consul_sdk_go/internal/consulapi"
	"github.com/consulvault/consul_sdk_go/internal/httpx"
)

// Client provides HTTP access to the agent API.
type Client struct {
	backend Backend
}

// New constructs an HTTP-backed client.
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

// NewWithBackend allows callers to provide a custom backend (e.g., mocks).
func NewWithBackend(b Backend) *Client {
	return &Client{backend: b}
}

// RegisterService adds or replaces a service on the local agent.
func (c *Client) RegisterService(ctx context.Context, def ServiceDefinition) error {
	if strings.TrimSpace(def.Name) == "" {
		return ErrNameRequired
	}
	if def.Check != nil && strings.TrimSpace(def.Check.Name) == "" {
		return fmt.Errorf("%w: service %q check", ErrNameRequired, def.Name)
	}
	for i, chk := range def.Checks {
		if strings.TrimSpace(chk.Name) == "" {
			return fmt.Errorf("%w: service %q check %d", ErrNameRequired, def.Name, i)
		}
	}
	if c == nil || c.backend == nil {
		return fmt.Errorf("agent: client is nil")
	}
	return c.backend.RegisterService(ctx, def)
}

// DeregisterService removes a service and its checks.
func (c *Client) DeregisterService(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("agent: service id is required")
	}
	if c == nil || c.backend == nil {
		return fmt.Errorf("agent: client is nil")
	}
	return c.backend.DeregisterService(ctx, id)
}

// Services lists the services registered with the local agent, keyed by ID.
func (c *Client) Services(ctx context.Context) (map[string]Service, error) {
	if c == nil || c.backend == nil {
		return nil, fmt.Errorf("agent: client is nil")
	}
	return c.backend.Services(ctx)
}

// RegisterCheck adds a check to the local agent.
func (c *Client) RegisterCheck(ctx context.Context, chk Check) error {
	if strings.TrimSpace(chk.Name) == "" {
		return ErrNameRequired
	}
	if c == nil || c.backend == nil {
		return fmt.Errorf("agent: client is nil")
	}
	return c.backend.RegisterCheck(ctx, chk)
}

// DeregisterCheck removes a check.
func (c *Client) DeregisterCheck(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("agent: check id is required")
	}
	if c == nil || c.backend == nil {
		return fmt.Errorf("agent: client is nil")
	}
	return c.backend.DeregisterCheck(ctx, id)
}

// Checks lists the checks registered with the local agent, keyed by ID.
func (c *Client) Checks(ctx context.Context) (map[string]CheckStatus, error) {
	if c == nil || c.backend == nil {
		return nil, fmt.Errorf("agent: client is nil")
	}
	return c.backend.Checks(ctx)
}

// Backend performs the agent operations.
type Backend interface {
	RegisterService(ctx context.Context, def ServiceDefinition) error
	DeregisterService(ctx context.Context, id string) error
	Services(ctx context.Context) (map[string]Service, error)
	RegisterCheck(ctx context.Context, chk Check) error
	DeregisterCheck(ctx context.Context, id string) error
	Checks(ctx context.Context) (map[string]CheckStatus, error)
}

type httpBackend struct {
	client *httpx.Client
}

func (b *httpBackend) RegisterService(ctx context.Context, def ServiceDefinition) error {
	return b.put(ctx, "/v1/agent/service/register", def)
}

func (b *httpBackend) DeregisterService(ctx context.Context, id string) error {
	return b.put(ctx, "/v1/agent/service/deregister/"+id, nil)
}

func (b *httpBackend) Services(ctx context.Context) (map[string]Service, error) {
	out := map[string]Service{}
	if err := b.get(ctx, "/v1/agent/services", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *httpBackend) RegisterCheck(ctx context.Context, chk Check) error {
	return b.put(ctx, "/v1/agent/check/register", chk)
}

func (b *httpBackend) DeregisterCheck(ctx context.Context, id string) error {
	return b.put(ctx, "/v1/agent/check/deregister/"+id, nil)
}

func (b *httpBackend) Checks(ctx context.Context) (map[string]CheckStatus, error) {
	out := map[string]CheckStatus{}
	if err := b.get(ctx, "/v1/agent/checks", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *httpBackend) get(ctx context.Context, path string, out any) error {
	if b == nil || b.client == nil {
		return fmt.Errorf("agent: http backend not configured")
	}
	resp, err := b.client.Do(ctx, &httpx.Request{
		Method: http.MethodGet,
		Path:   path,
	})
	if err != nil {
		return err
	}
	data, err := httpx.ReadAllAndClose(resp.Body)
	if err != nil {
		return fmt.Errorf("agent: read response: %w", err)
	}
	if _, err := consulapi.DecodeJSON(data, out); err != nil {
		return fmt.Errorf("agent: decode %s: %w", path, err)
	}
	return nil
}

func (b *httpBackend) put(ctx context.Context, path string, payload any) error {
	if b == nil || b.client == nil {
		return fmt.Errorf("agent: http backend not configured")
	}
	req := &httpx.Request{
		Method: http.MethodPut,
		Path:   path,
	}
	if payload != nil {
		body, contentType, err := httpx.WithJSONBody(payload)
		if err != nil {
			return fmt.Errorf("agent: encode payload: %w", err)
		}
		req.Body = body
		req.Header = http.Header{"Content-Type": []string{contentType}}
	}
	resp, err := b.client.Do(ctx, req)
	if err != nil {
		if httpx.IsNotFound(err) {
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return err
	}
	_ = resp.Body.Close()
	return nil
}
