package kv_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarantool/go-option"

	"github.com/consulvault/consul_sdk_go/internal/sandbox"
	"github.com/consulvault/consul_sdk_go/pkg/kv"
	"github.com/consulvault/consul_sdk_go/pkg/kv/mock"
)

func newSandboxClient(t *testing.T) *kv.Client {
	t.Helper()
	srv := httptest.NewServer(sandbox.New(nil, nil).Handler())
	t.Cleanup(srv.Close)

	client, err := kv.New(srv.URL)
	require.NoError(t, err)
	return client
}

func seedTree(t *testing.T, client *kv.Client) {
	t.Helper()
	ctx := context.Background()
	for key, value := range map[string]string{"a/b/c": "123", "a/b/d": "456", "z": "last"} {
		ok, err := client.Put(ctx, key, value)
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestPutThenGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newSandboxClient(t)

	ok, err := client.Put(ctx, "foo", "bar")
	require.NoError(t, err)
	assert.True(t, ok)

	res, err := client.Get(ctx, "foo")
	require.NoError(t, err)
	assert.Equal(t, kv.ResultEntries, res.Kind)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "foo", res.Entries[0].Key)
	assert.Equal(t, "YmFy", res.Entries[0].Value)
	assert.NotZero(t, res.Meta.LastIndex)
	assert.True(t, res.Meta.KnownLeader)

	text, err := res.Entries[0].Text()
	require.NoError(t, err)
	assert.Equal(t, "bar", text)

	res, err = client.Get(ctx, "/foo", kv.WithRaw(true))
	require.NoError(t, err)
	assert.Equal(t, kv.ResultRaw, res.Kind)
	assert.Equal(t, []byte("bar"), res.Raw)
}

func TestGetRecurseAndKeys(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newSandboxClient(t)
	seedTree(t, client)

	res, err := client.Get(ctx, "a", kv.WithRecurse(true))
	require.NoError(t, err)
	assert.Len(t, res.Entries, 2)

	res, err = client.Get(ctx, "a", kv.WithKeys(true))
	require.NoError(t, err)
	assert.Equal(t, kv.ResultKeys, res.Kind)
	assert.ElementsMatch(t, []string{"a/b/c", "a/b/d"}, res.Keys)

	res, err = client.Get(ctx, "a", kv.WithKeys(true), kv.WithSeparator("b"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a/b"}, res.Keys)

	keys, err := client.Keys(ctx, "", option.Some("/"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a/", "z"}, keys)

	entries, err := client.List(ctx, "a/b/")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestResultPriority(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newSandboxClient(t)
	seedTree(t, client)

	res, err := client.Get(ctx, "a/b/c", kv.WithRaw(true), kv.WithKeys(true))
	require.NoError(t, err)
	assert.Equal(t, kv.ResultRaw, res.Kind, "raw outranks keys")
	assert.Equal(t, "123", string(res.Raw))

	res, err = client.Get(ctx, "a/b/c", kv.WithRaw(false))
	require.NoError(t, err)
	assert.Equal(t, kv.ResultEntries, res.Kind, "raw=false is the same as not set")
}

func TestMissingKeyIsEmpty(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newSandboxClient(t)

	res, err := client.Get(ctx, "nope")
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.NotNil(t, res.Entries)

	res, err = client.Get(ctx, "nope", kv.WithKeys(true))
	require.NoError(t, err)
	assert.Equal(t, kv.ResultKeys, res.Kind)
	assert.Empty(t, res.Keys)

	raw, err := client.Raw(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, raw)
}

func TestUnsetModifiersNeverSent(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		queries []url.Values
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		queries = append(queries, r.URL.Query())
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(srv.Close)

	client, err := kv.New(srv.URL)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = client.Get(ctx, "k")
	require.NoError(t, err)
	_, err = client.Get(ctx, "k", kv.WithRecurse(false), kv.WithDatacenter("dc2"), kv.WithSeparator(""))
	require.NoError(t, err)
	_, err = client.Get(ctx, "k", kv.WithKeys(true), kv.WithNamespace("team"))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, queries, 3)

	assert.Empty(t, queries[0])

	assert.Equal(t, "dc2", queries[1].Get("dc"))
	assert.False(t, queries[1].Has("recurse"))
	assert.True(t, queries[1].Has("separator"), "explicit empty string is still sent")
	assert.Equal(t, "", queries[1].Get("separator"))

	assert.True(t, queries[2].Has("keys"))
	assert.Equal(t, "team", queries[2].Get("ns"))
	assert.False(t, queries[2].Has("raw"))
}

func TestNonSuccessStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rpc error", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	client, err := kv.New(srv.URL)
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "k")
	require.Error(t, err)
	var httpErr *kv.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
	assert.Contains(t, string(httpErr.Body), "rpc error")
	assert.ErrorIs(t, err, kv.ErrRequestFailed)

	_, err = client.Put(context.Background(), "k", "v")
	assert.ErrorIs(t, err, kv.ErrRequestFailed)
}

func TestWriteNeedsBooleanAnswer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	client, err := kv.New(srv.URL)
	require.NoError(t, err)

	ok, err := client.Put(context.Background(), "k", "v")
	require.Error(t, err)
	assert.False(t, ok)

	ok, err = client.Delete(context.Background(), "k")
	require.Error(t, err)
	assert.False(t, ok)
}

func TestShortcutsLeaveCallerOptionsAlone(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newSandboxClient(t)
	seedTree(t, client)

	base := make([]kv.QueryOption, 0, 4)
	base = append(base, kv.WithDatacenter("dc1"))

	_, err := client.Raw(ctx, "z", base...)
	require.NoError(t, err)
	_, err = client.Keys(ctx, "a", option.None[string](), base...)
	require.NoError(t, err)
	_, err = client.List(ctx, "a", base...)
	require.NoError(t, err)

	var q kv.QueryOptions
	for _, opt := range base[:cap(base)] {
		if opt != nil {
			opt(&q)
		}
	}
	assert.False(t, q.Raw.IsSome())
	assert.False(t, q.Keys.IsSome())
	assert.False(t, q.Recurse.IsSome())

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			raw, err := client.Raw(ctx, "z", base...)
			assert.NoError(t, err)
			assert.Equal(t, "last", string(raw))
		}()
		go func() {
			defer wg.Done()
			keys, err := client.Keys(ctx, "a", option.None[string](), base...)
			assert.NoError(t, err)
			assert.Equal(t, []string{"a/b/c", "a/b/d"}, keys)
		}()
	}
	wg.Wait()
}

func TestDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newSandboxClient(t)
	seedTree(t, client)

	ok, err := client.Delete(ctx, "a", kv.WithRecurse(true))
	require.NoError(t, err)
	assert.True(t, ok)

	keys, err := client.Keys(ctx, "", option.None[string]())
	require.NoError(t, err)
	assert.Equal(t, []string{"z"}, keys)

	_, err = client.Delete(ctx, "")
	assert.ErrorIs(t, err, kv.ErrKeyRequired)
}

func TestFlagsRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newSandboxClient(t)

	_, err := client.Put(ctx, "flagged", "v", kv.WithFlags(42))
	require.NoError(t, err)

	entries, err := client.Entries(ctx, "flagged")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, uint64(42), entries[0].Flags)
}

func TestJSONHelpers(t *testing.T) {
	t.Parallel()

	type config struct {
		Name    string `json:"name"`
		Replica int    `json:"replica"`
	}

	ctx := context.Background()
	client := newSandboxClient(t)

	ok, err := kv.PutJSON(ctx, client, "cfg/app", config{Name: "app", Replica: 3})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := kv.GetJSON[config](ctx, client, "cfg/app")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, config{Name: "app", Replica: 3}, *got)

	missing, err := kv.GetJSON[config](ctx, client, "cfg/none")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestKeyValidation(t *testing.T) {
	t.Parallel()

	client := kv.NewWithBackend(mock.New())
	ctx := context.Background()

	_, err := client.Get(ctx, "/")
	assert.ErrorIs(t, err, kv.ErrKeyRequired)
	_, err = client.Put(ctx, "", "v")
	assert.ErrorIs(t, err, kv.ErrKeyRequired)

	res, err := client.Get(ctx, "", kv.WithRecurse(true))
	require.NoError(t, err)
	assert.True(t, res.Empty())
}

func TestNewWithBackend(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := kv.NewWithBackend(mock.New())

	ok, err := client.Put(ctx, "svc/port", "8080")
	require.NoError(t, err)
	assert.True(t, ok)

	raw, err := client.Raw(ctx, "svc/port")
	require.NoError(t, err)
	assert.Equal(t, "8080", string(raw))
}
