package consulapi

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMeta(t *testing.T) {
	h := http.Header{}
	h.Set(HeaderIndex, "42")
	h.Set(HeaderKnownLeader, "true")
	h.Set(HeaderLastContact, "15")

	meta := ParseMeta(h)
	assert.Equal(t, uint64(42), meta.LastIndex)
	assert.True(t, meta.KnownLeader)
	assert.Equal(t, 15*time.Millisecond, meta.LastContact)

	h.Set(HeaderIndex, "nope")
	assert.Equal(t, uint64(0), ParseMeta(h).LastIndex)
	assert.Equal(t, Meta{}, ParseMeta(http.Header{}))
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		present bool
		want    []string
	}{
		{name: "list", body: `["a","b"]`, present: true, want: []string{"a", "b"}},
		{name: "null", body: `null`},
		{name: "empty", body: ``},
		{name: "whitespace", body: " \n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out []string
			present, err := DecodeJSON([]byte(tc.body), &out)
			require.NoError(t, err)
			assert.Equal(t, tc.present, present)
			assert.Equal(t, tc.want, out)
		})
	}

	var out []string
	_, err := DecodeJSON([]byte(`{"not":"a list"}`), &out)
	require.Error(t, err)
}

func TestDecodeBool(t *testing.T) {
	ok, err := DecodeBool([]byte("true"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = DecodeBool([]byte("false\n"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = DecodeBool(nil)
	require.Error(t, err)

	_, err = DecodeBool([]byte("  \n"))
	require.Error(t, err)

	_, err = DecodeBool([]byte("maybe"))
	require.Error(t, err)
}
