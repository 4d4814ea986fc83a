package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/consulvault/consul_sdk_go/internal/devseed"
	"github.com/consulvault/consul_sdk_go/pkg/kv"
)

func (a *app) newKVCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kv",
		Short: "Read and write the key/value store",
	}
	cmd.AddCommand(
		a.newKVGetCmd(),
		a.newKVPutCmd(),
		a.newKVDeleteCmd(),
		a.newKVExportCmd(),
		a.newKVImportCmd(),
	)
	return cmd
}

func addScopeFlags(cmd *cobra.Command) {
	cmd.Flags().String("dc", "", "datacenter (defaults to the agent's)")
	cmd.Flags().String("ns", "", "namespace")
}

// queryOptions converts the flags the user actually set into kv modifiers.
// Flags left untouched are never sent.
func queryOptions(cmd *cobra.Command) []kv.QueryOption {
	var opts []kv.QueryOption
	fs := cmd.Flags()
	if fs.Changed("dc") {
		v, _ := fs.GetString("dc")
		opts = append(opts, kv.WithDatacenter(v))
	}
	if fs.Changed("ns") {
		v, _ := fs.GetString("ns")
		opts = append(opts, kv.WithNamespace(v))
	}
	if fs.Changed("recurse") {
		v, _ := fs.GetBool("recurse")
		opts = append(opts, kv.WithRecurse(v))
	}
	if fs.Changed("raw") {
		v, _ := fs.GetBool("raw")
		opts = append(opts, kv.WithRaw(v))
	}
	if fs.Changed("keys") {
		v, _ := fs.GetBool("keys")
		opts = append(opts, kv.WithKeys(v))
	}
	if fs.Changed("separator") {
		v, _ := fs.GetString("separator")
		opts = append(opts, kv.WithSeparator(v))
	}
	if fs.Changed("flags") {
		v, _ := fs.GetUint64("flags")
		opts = append(opts, kv.WithFlags(v))
	}
	return opts
}

func (a *app) newKVGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get KEY",
		Short: "Read a key, a prefix or a key listing",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			key := ""
			if len(args) == 1 {
				key = args[0]
			}
			res, err := client.KV.Get(cmd.Context(), key, queryOptions(cmd)...)
			if err != nil {
				return err
			}
			a.logger.Debug("kv read", "key", key, "kind", res.Kind, "size", res.Len(), "index", res.Meta.LastIndex)
			if res.Empty() {
				a.logger.Warn("no data found", "key", key)
			}
			return a.printResult(res)
		},
	}
	addScopeFlags(cmd)
	cmd.Flags().Bool("recurse", false, "read every key under the prefix")
	cmd.Flags().Bool("raw", false, "print the stored value only")
	cmd.Flags().Bool("keys", false, "list key names only")
	cmd.Flags().String("separator", "", "fold listed keys at this separator")
	return cmd
}

// kvEntryView is an entry with its value decoded for display.
type kvEntryView struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Flags       uint64 `json:"flags"`
	CreateIndex uint64 `json:"create_index"`
	ModifyIndex uint64 `json:"modify_index"`
	Session     string `json:"session,omitempty"`
}

func (a *app) printResult(res *kv.Result) error {
	switch res.Kind {
	case kv.ResultRaw:
		if _, err := a.out.Write(res.Raw); err != nil {
			return err
		}
		if len(res.Raw) > 0 && res.Raw[len(res.Raw)-1] != '\n' {
			_, err := io.WriteString(a.out, "\n")
			return err
		}
		return nil
	case kv.ResultKeys:
		for _, k := range res.Keys {
			if _, err := fmt.Fprintln(a.out, k); err != nil {
				return err
			}
		}
		return nil
	default:
		views := make([]kvEntryView, 0, len(res.Entries))
		for _, e := range res.Entries {
			text, err := e.Text()
			if err != nil {
				return err
			}
			views = append(views, kvEntryView{
				Key:         e.Key,
				Value:       text,
				Flags:       e.Flags,
				CreateIndex: e.CreateIndex,
				ModifyIndex: e.ModifyIndex,
				Session:     e.Session,
			})
		}
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	}
}

func (a *app) newKVPutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put KEY [VALUE|-]",
		Short: "Write a value; '-' or no value reads stdin",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			var value []byte
			if len(args) == 2 && args[1] != "-" {
				value = []byte(args[1])
			} else {
				if value, err = io.ReadAll(cmd.InOrStdin()); err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
			}
			ok, err := client.KV.PutBytes(cmd.Context(), args[0], value, queryOptions(cmd)...)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("write to %s was rejected", args[0])
			}
			fmt.Fprintf(a.out, "Success! Data written to: %s (%s)\n", args[0], humanize.Bytes(uint64(len(value))))
			return nil
		},
	}
	addScopeFlags(cmd)
	cmd.Flags().Uint64("flags", 0, "opaque flags stored with the key")
	return cmd
}

func (a *app) newKVDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete KEY",
		Short: "Delete a key or, with --recurse, a prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			key := ""
			if len(args) == 1 {
				key = args[0]
			}
			ok, err := client.KV.Delete(cmd.Context(), key, queryOptions(cmd)...)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("delete of %s was rejected", key)
			}
			fmt.Fprintf(a.out, "Success! Deleted key: %s\n", key)
			return nil
		},
	}
	addScopeFlags(cmd)
	cmd.Flags().Bool("recurse", false, "delete every key under the prefix")
	return cmd
}

func (a *app) newKVExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [PREFIX]",
		Short: "Print keys under PREFIX in consul kv export format",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			entries, err := client.KV.List(cmd.Context(), prefix, queryOptions(cmd)...)
			if err != nil {
				return err
			}
			out := make([]devseed.KVEntry, 0, len(entries))
			for _, e := range entries {
				out = append(out, devseed.KVEntry{Key: e.Key, Flags: e.Flags, Value: e.Value})
			}
			a.logger.Info("exported keys", "count", humanize.Comma(int64(len(out))), "prefix", prefix)
			return devseed.EncodeKV(a.out, out)
		},
	}
	addScopeFlags(cmd)
	return cmd
}

func (a *app) newKVImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [FILE|-]",
		Short: "Write every entry of a consul kv export file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var src io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				src = f
			}
			entries, err := devseed.DecodeKV(src)
			if err != nil {
				return err
			}

			client, err := a.client()
			if err != nil {
				return err
			}

			prefix, _ := cmd.Flags().GetString("prefix")
			jobs := a.v.GetInt(keyJobs)
			if cmd.Flags().Changed("jobs") {
				jobs, _ = cmd.Flags().GetInt("jobs")
			}
			if jobs < 1 {
				return errors.New("--jobs must be at least 1")
			}

			base := queryOptions(cmd)
			var written atomic.Uint64
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(jobs)
			for _, e := range entries {
				g.Go(func() error {
					value, err := e.Bytes()
					if err != nil {
						return err
					}
					key := strings.TrimLeft(prefix+e.Key, "/")
					opts := append([]kv.QueryOption{kv.WithFlags(e.Flags)}, base...)
					ok, err := client.KV.PutBytes(ctx, key, value, opts...)
					if err != nil {
						return fmt.Errorf("import %s: %w", key, err)
					}
					if !ok {
						return fmt.Errorf("import %s: write rejected", key)
					}
					written.Add(uint64(len(value)))
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			a.logger.Info("imported keys",
				"count", humanize.Comma(int64(len(entries))),
				"size", humanize.Bytes(written.Load()),
				"jobs", jobs,
			)
			fmt.Fprintf(a.out, "Imported: %s keys\n", humanize.Comma(int64(len(entries))))
			return nil
		},
	}
	addScopeFlags(cmd)
	cmd.Flags().String("prefix", "", "prepend this prefix to every imported key")
	cmd.Flags().Int("jobs", defaultJobs, "number of concurrent writes")
	return cmd
}
