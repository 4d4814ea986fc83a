// Package consul_sdk bundles the kv and agent clients behind a single
// constructor and bootstraps them from the environment.
//
// CONSUL_HTTP_ADDR names the agent ("host:port" or a URL). CONSUL_SDK_MODE
// selects "http" (the default), "mock" (an in-process sandbox, optionally
// seeded from the export file in CONSUL_MOCK_KV_SEED) or "auto" (http when an
// address is set, mock otherwise).
package consul_sdk
