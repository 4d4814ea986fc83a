// Package kv is a client for the Consul key/value endpoint family
// (/v1/kv/<key>). Reads accept optional query modifiers (datacenter, recurse,
// raw, keys, separator, namespace) and return a Result whose shape depends on
// which modifiers were set: raw bytes, a list of key names, or decoded
// entries. Modifiers that are never set are left out of the request entirely.
//
// A missing key is not an error: Consul answers 404 and the client reports an
// empty Result. Every other non-2xx status surfaces as *HTTPError.
package kv
