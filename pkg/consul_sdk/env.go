package consul_sdk

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/consulvault/consul_sdk_go/internal/devseed"
	"github.com/consulvault/consul_sdk_go/internal/httpx"
	"github.com/consulvault/consul_sdk_go/internal/sandbox"
	kvmock "github.com/consulvault/consul_sdk_go/pkg/kv/mock"
)

// Environment variables read by NewFromEnv.
const (
	EnvHTTPAddr   = "CONSUL_HTTP_ADDR"
	EnvMode       = "CONSUL_SDK_MODE"
	EnvMockKVSeed = "CONSUL_MOCK_KV_SEED"
)

// Modes reported by NewFromEnv.
const (
	ModeAuto = "auto"
	ModeHTTP = "http"
	ModeMock = "mock"
)

// mockAddr is the base URL handed to clients served by the in-process sandbox.
const mockAddr = "http://sandbox.consul"

// ErrAddrRequired is returned when http mode has no agent address.
var ErrAddrRequired = errors.New("consul_sdk: " + EnvHTTPAddr + " is not set")

// Config selects how a Client reaches Consul.
type Config struct {
	// Addr is the agent address, "host:port" or a URL.
	Addr string
	// Mode is one of ModeHTTP (default), ModeMock or ModeAuto.
	Mode string
	// MockSeed is an optional consul kv export file loaded in mock mode.
	MockSeed string
}

// ConfigFromEnv reads CONSUL_HTTP_ADDR, CONSUL_SDK_MODE and
// CONSUL_MOCK_KV_SEED.
func ConfigFromEnv() Config {
	return Config{
		Addr:     strings.TrimSpace(os.Getenv(EnvHTTPAddr)),
		Mode:     strings.TrimSpace(os.Getenv(EnvMode)),
		MockSeed: strings.TrimSpace(os.Getenv(EnvMockKVSeed)),
	}
}

// NewFromEnv builds a Client from the environment and returns the resolved
// mode ("http" or "mock").
func NewFromEnv(opts ...httpx.Option) (client *Client, mode string, err error) {
	return NewFromConfig(ConfigFromEnv(), opts...)
}

// NewFromConfig builds a Client from cfg and returns the resolved mode.
func NewFromConfig(cfg Config, opts ...httpx.Option) (client *Client, mode string, err error) {
	mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	addr := strings.TrimSpace(cfg.Addr)

	switch mode {
	case "", ModeHTTP:
		if addr == "" {
			return nil, "", ErrAddrRequired
		}
		return newHTTPClient(addr, opts)
	case ModeAuto:
		if addr != "" {
			return newHTTPClient(addr, opts)
		}
		return newMockClient(cfg.MockSeed, opts)
	case ModeMock:
		return newMockClient(cfg.MockSeed, opts)
	default:
		return nil, "", fmt.Errorf("consul_sdk: unsupported %s value %q", EnvMode, mode)
	}
}

func newHTTPClient(addr string, opts []httpx.Option) (*Client, string, error) {
	client, err := New(addr, opts...)
	if err != nil {
		return nil, "", fmt.Errorf("consul_sdk: init HTTP client: %w", err)
	}
	return client, ModeHTTP, nil
}

func newMockClient(seedPath string, opts []httpx.Option) (*Client, string, error) {
	store := kvmock.New()
	if path := strings.TrimSpace(seedPath); path != "" {
		entries, err := devseed.LoadKVSeed(path)
		if err != nil {
			return nil, "", fmt.Errorf("consul_sdk: load mock seed: %w", err)
		}
		if err := store.Seed(entries); err != nil {
			return nil, "", fmt.Errorf("consul_sdk: apply mock seed: %w", err)
		}
	}

	srv := sandbox.New(store, nil)
	httpClient := &http.Client{Transport: sandbox.Transport(srv.Handler())}
	client, err := New(mockAddr, append(opts, httpx.WithHTTPClient(httpClient))...)
	if err != nil {
		return nil, "", err
	}
	return client, ModeMock, nil
}
