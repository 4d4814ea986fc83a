package consulapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Response headers reported by a Consul agent on read endpoints.
const (
	HeaderIndex       = "X-Consul-Index"
	HeaderKnownLeader = "X-Consul-Knownleader"
	HeaderLastContact = "X-Consul-Lastcontact"
)

// Meta captures the query metadata Consul attaches to read responses.
type Meta struct {
	LastIndex   uint64
	KnownLeader bool
	LastContact time.Duration
}

// ParseMeta reads the X-Consul-* headers. Missing or malformed headers leave
// the corresponding field at its zero value.
func ParseMeta(h http.Header) Meta {
	var meta Meta
	if v := h.Get(HeaderIndex); v != "" {
		if idx, err := strconv.ParseUint(v, 10, 64); err == nil {
			meta.LastIndex = idx
		}
	}
	if v := h.Get(HeaderKnownLeader); v != "" {
		meta.KnownLeader = v == "true"
	}
	if v := h.Get(HeaderLastContact); v != "" {
		if ms, err := strconv.ParseUint(v, 10, 64); err == nil {
			meta.LastContact = time.Duration(ms) * time.Millisecond
		}
	}
	return meta
}

// DecodeJSON decodes body into out. An empty body or a JSON null leaves out
// untouched and reports false.
func DecodeJSON(body []byte, out any) (bool, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return false, nil
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return false, err
	}
	return true, nil
}

// DecodeBool decodes the literal true/false acknowledgement Consul returns
// from kv writes. Anything else, an empty body included, is an error.
func DecodeBool(body []byte) (bool, error) {
	trimmed := bytes.TrimSpace(body)
	var ok bool
	if err := json.Unmarshal(trimmed, &ok); err != nil {
		return false, fmt.Errorf("consulapi: decode acknowledgement %q: %w", string(trimmed), err)
	}
	return ok, nil
}
