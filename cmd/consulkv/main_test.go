package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consulvault/consul_sdk_go/internal/sandbox"
	"github.com/consulvault/consul_sdk_go/pkg/consul_sdk"
)

func newAgent(t *testing.T) (*sandbox.Server, string) {
	t.Helper()
	s := sandbox.New(nil, nil)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv.URL
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd(&out, &errOut)
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestKVCommands(t *testing.T) {
	t.Parallel()

	_, addr := newAgent(t)

	out, err := run(t, "", "kv", "put", "--http-addr", addr, "app/name", "demo")
	require.NoError(t, err)
	assert.Contains(t, out, "Success! Data written to: app/name")

	_, err = run(t, "from stdin", "kv", "put", "--http-addr", addr, "--flags", "4", "app/motd", "-")
	require.NoError(t, err)

	out, err = run(t, "", "kv", "get", "--http-addr", addr, "--raw", "app/motd")
	require.NoError(t, err)
	assert.Equal(t, "from stdin\n", out)

	out, err = run(t, "", "kv", "get", "--http-addr", addr, "--keys", "app")
	require.NoError(t, err)
	assert.Equal(t, "app/motd\napp/name\n", out)

	out, err = run(t, "", "kv", "get", "--http-addr", addr, "--recurse", "app")
	require.NoError(t, err)
	assert.Contains(t, out, `"value": "demo"`)
	assert.Contains(t, out, `"flags": 4`)

	out, err = run(t, "", "kv", "get", "--http-addr", addr, "missing")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)

	out, err = run(t, "", "kv", "delete", "--http-addr", addr, "--recurse", "app")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted key: app")

	out, err = run(t, "", "kv", "get", "--http-addr", addr, "--keys")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestKVExportImport(t *testing.T) {
	t.Parallel()

	_, src := newAgent(t)
	dst, dstAddr := newAgent(t)

	for _, kv := range [][2]string{{"cfg/a", "1"}, {"cfg/b", "2"}, {"cfg/c/d", "3"}} {
		_, err := run(t, "", "kv", "put", "--http-addr", src, kv[0], kv[1])
		require.NoError(t, err)
	}

	exported, err := run(t, "", "kv", "export", "--http-addr", src, "cfg/")
	require.NoError(t, err)
	assert.Contains(t, exported, `"key": "cfg/c/d"`)

	out, err := run(t, exported, "kv", "import", "--http-addr", dstAddr, "--jobs", "2", "--prefix", "copy/")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported: 3 keys")

	value, ok, err := dst.KV().Value(context.Background(), "copy/cfg/c/d")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "3", string(value))

	_, err = run(t, exported, "kv", "import", "--http-addr", dstAddr, "--jobs", "0")
	assert.Error(t, err)
}

func TestAgentCommands(t *testing.T) {
	t.Parallel()

	s, addr := newAgent(t)

	def := `{"Name":"web","ID":"web-1","Port":8080,"Tags":["blue"],"Check":{"Name":"alive","TTL":"10s"}}`
	out, err := run(t, def, "agent", "register", "--http-addr", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "Registered service: web")

	out, err = run(t, "", "agent", "services", "--http-addr", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "web-1")
	assert.Contains(t, out, ":8080")
	assert.Contains(t, out, "blue")

	out, err = run(t, "", "agent", "checks", "--http-addr", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "service:web-1")
	assert.Contains(t, out, "critical")

	_, err = run(t, `{"Name":"disk","TTL":"1m"}`, "agent", "register", "--check", "--http-addr", addr)
	require.NoError(t, err)
	checks, err := s.Agent().Checks(context.Background())
	require.NoError(t, err)
	assert.Contains(t, checks, "disk")

	_, err = run(t, `{"Nmae":"typo"}`, "agent", "register", "--http-addr", addr)
	assert.Error(t, err)

	out, err = run(t, "", "agent", "deregister", "--http-addr", addr, "web-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Deregistered service: web-1")

	_, err = run(t, "", "agent", "deregister", "--http-addr", addr, "web-1")
	assert.Error(t, err)
}

func TestMissingAddress(t *testing.T) {
	t.Setenv(consul_sdk.EnvHTTPAddr, "")
	t.Setenv(consul_sdk.EnvMode, "")

	_, err := run(t, "", "kv", "get", "foo")
	assert.ErrorIs(t, err, consul_sdk.ErrAddrRequired)
}

func TestAddressFromEnvAndConfig(t *testing.T) {
	_, addr := newAgent(t)

	t.Setenv(consul_sdk.EnvHTTPAddr, addr)
	t.Setenv(consul_sdk.EnvMode, "")
	_, err := run(t, "", "kv", "put", "env/key", "v")
	require.NoError(t, err)

	t.Setenv(consul_sdk.EnvHTTPAddr, "")
	cfg := filepath.Join(t.TempDir(), "consulkv.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("http_addr: "+addr+"\n"), 0o600))

	out, err := run(t, "", "kv", "get", "--config", cfg, "--raw", "env/key")
	require.NoError(t, err)
	assert.Equal(t, "v\n", out)
}

func TestMockModeWithSeed(t *testing.T) {
	seed := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(seed, []byte(`[{"key":"greeting","flags":0,"value":"aGk="}]`), 0o600))

	t.Setenv(consul_sdk.EnvHTTPAddr, "")
	out, err := run(t, "", "kv", "get", "--mode", "mock", "--mock-seed", seed, "--raw", "greeting")
	require.NoError(t, err)
	assert.Equal(t, "hi\n", out)
}

func TestVersion(t *testing.T) {
	t.Parallel()

	out, err := run(t, "", "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "version: "+consul_sdk.Version)
}

func TestSandboxRejectsBadFailFlag(t *testing.T) {
	t.Parallel()

	_, err := run(t, "", "sandbox", "--fail", "rate=abc")
	assert.Error(t, err)
}
