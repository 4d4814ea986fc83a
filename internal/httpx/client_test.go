package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarantool/go-option"
)

func TestNewClientBaseURL(t *testing.T) {
	t.Parallel()

	c, err := NewClient("127.0.0.1:8500")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8500", c.BaseURL())

	c, err = NewClient("https://consul.example:8501")
	require.NoError(t, err)
	assert.Equal(t, "https://consul.example:8501", c.BaseURL())

	_, err = NewClient("   ")
	require.Error(t, err)

	_, err = NewClient("://not-a-url")
	require.Error(t, err)
}

func TestDoFiltersUnsetParams(t *testing.T) {
	t.Parallel()

	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	resp, err := c.Do(context.Background(), &Request{
		Method: http.MethodGet,
		Path:   "/v1/kv/a",
		Params: []Param{
			NewParam("dc", option.None[string]()),
			NewParam("separator", option.Some("")),
			NewParam("recurse", option.Some("true")),
			{Name: "ns"},
		},
	})
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.False(t, got.Has("dc"))
	assert.False(t, got.Has("ns"))
	assert.True(t, got.Has("separator"))
	assert.Equal(t, "", got.Get("separator"))
	assert.Equal(t, "true", got.Get("recurse"))
}

func TestDoEscapesPath(t *testing.T) {
	t.Parallel()

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	resp, err := c.Do(context.Background(), &Request{Method: http.MethodGet, Path: "v1/kv/a b?c"})
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, "/v1/kv/a b?c", gotPath)
}

func TestDoHTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, WithHeaders(http.Header{"X-Test": {"1"}}))
	require.NoError(t, err)

	_, err = c.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/v1/kv/x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequestFailed)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
	assert.Equal(t, "boom\n", string(httpErr.Body))
	assert.False(t, httpErr.NotFound())
	assert.False(t, IsNotFound(err))

	code, ok := StatusCode(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, code)
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = c.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/v1/kv/missing"})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsNotFound(ErrRequestFailed))
	assert.False(t, IsNotFound(nil))
}

func TestDoNetworkErrorIsRequestFailed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	c, err := NewClient(addr)
	require.NoError(t, err)

	_, err = c.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/v1/kv/x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequestFailed)

	_, ok := StatusCode(err)
	assert.False(t, ok)
	assert.False(t, IsNotFound(err))
}

func TestDoSendsBodyAndHeaders(t *testing.T) {
	t.Parallel()

	var (
		gotBody   string
		gotHeader string
		gotMethod string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		gotHeader = r.Header.Get("X-Consul-Token-Free")
		gotMethod = r.Method
		_, _ = io.WriteString(w, "true")
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, WithHeaders(http.Header{"X-Consul-Token-Free": {"yes"}}))
	require.NoError(t, err)

	body, contentType, err := WithJSONBody(map[string]string{"a": "<b>"})
	require.NoError(t, err)
	assert.Equal(t, "application/json", contentType)

	resp, err := c.Do(context.Background(), &Request{
		Method: http.MethodPut,
		Path:   "/v1/kv/x",
		Body:   body,
	})
	require.NoError(t, err)
	data, err := ReadAllAndClose(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, "true", string(data))
	assert.Equal(t, `{"a":"<b>"}`, gotBody)
	assert.Equal(t, "yes", gotHeader)
	assert.Equal(t, http.MethodPut, gotMethod)
}

func TestDoValidation(t *testing.T) {
	t.Parallel()

	c, err := NewClient("localhost:8500")
	require.NoError(t, err)

	_, err = c.Do(context.Background(), nil)
	require.Error(t, err)

	_, err = c.Do(context.Background(), &Request{Path: "/v1/kv/x"})
	require.Error(t, err)
}
