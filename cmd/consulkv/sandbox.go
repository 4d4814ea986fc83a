package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/consulvault/consul_sdk_go/internal/devseed"
	"github.com/consulvault/consul_sdk_go/internal/sandbox"
	"github.com/consulvault/consul_sdk_go/pkg/consul_sdk"
	kvmock "github.com/consulvault/consul_sdk_go/pkg/kv/mock"
)

func (a *app) newSandboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Run an in-memory Consul agent for local development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			seed, _ := cmd.Flags().GetString("kv-seed")
			latency, _ := cmd.Flags().GetDuration("latency")
			fail, _ := cmd.Flags().GetString("fail")
			dc, _ := cmd.Flags().GetString("datacenter")

			failCfg, err := sandbox.ParseFailConfig(fail)
			if err != nil {
				return fmt.Errorf("parse --fail: %w", err)
			}

			store := kvmock.New()
			if seed != "" {
				entries, err := devseed.LoadKVSeed(seed)
				if err != nil {
					return fmt.Errorf("load kv seed: %w", err)
				}
				if err := store.Seed(entries); err != nil {
					return fmt.Errorf("apply kv seed: %w", err)
				}
				a.logger.Info("kv seed loaded", "path", seed, "keys", humanize.Comma(int64(len(entries))))
			}

			srv := sandbox.New(store, nil,
				sandbox.WithLatency(latency),
				sandbox.WithFailure(failCfg),
				sandbox.WithDatacenter(dc),
				sandbox.WithLogger(a.logger),
			)

			host := addr
			if strings.HasPrefix(host, ":") {
				host = "localhost" + host
			}
			fmt.Fprintln(a.out)
			fmt.Fprintf(a.out, "export %s=%s\n", consul_sdk.EnvHTTPAddr, host)
			fmt.Fprintln(a.out)

			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().String("addr", "127.0.0.1:8500", "listen address")
	cmd.Flags().String("kv-seed", "", "consul kv export file to preload")
	cmd.Flags().Duration("latency", 0, "artificial latency per request")
	cmd.Flags().String("fail", "", "failure injection: rate=<float>,code=<status>")
	cmd.Flags().String("datacenter", sandbox.DefaultDatacenter, "datacenter name to answer for")
	return cmd
}
