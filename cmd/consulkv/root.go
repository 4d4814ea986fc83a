package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/consulvault/consul_sdk_go/internal/httpx"
	"github.com/consulvault/consul_sdk_go/pkg/consul_sdk"
)

// Configuration keys. Flags override the environment, which overrides the
// config file.
const (
	keyHTTPAddr = "http_addr"
	keyMode     = "mode"
	keyMockSeed = "mock_seed"
	keyVerbose  = "verbose"
	keyJobs     = "jobs"
)

const defaultJobs = 8

type app struct {
	v      *viper.Viper
	out    io.Writer
	errOut io.Writer
	logger *slog.Logger
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{
		v:      viper.New(),
		out:    out,
		errOut: errOut,
		logger: slog.New(slog.DiscardHandler),
	}

	root := &cobra.Command{
		Use:           "consulkv",
		Short:         "Consul key/value and agent client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := cmd.Flags().GetBool("version")
			if err != nil {
				return err
			}
			if version {
				fmt.Fprintf(a.out, "\nversion: %s\nbuild: %s\n\n", consul_sdk.Version, consul_sdk.Build)
				return nil
			}
			return cmd.Help()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (yaml, json or toml)")
	pf.String("http-addr", "", "Consul agent address, host:port or URL [$"+consul_sdk.EnvHTTPAddr+"]")
	pf.String("mode", "", "client mode: http, mock or auto [$"+consul_sdk.EnvMode+"]")
	pf.String("mock-seed", "", "consul kv export file loaded in mock mode [$"+consul_sdk.EnvMockKVSeed+"]")
	pf.BoolP("verbose", "v", false, "log requests at debug level")
	root.Flags().BoolP("version", "V", false, "print version and build")

	_ = a.v.BindPFlag(keyHTTPAddr, pf.Lookup("http-addr"))
	_ = a.v.BindPFlag(keyMode, pf.Lookup("mode"))
	_ = a.v.BindPFlag(keyMockSeed, pf.Lookup("mock-seed"))
	_ = a.v.BindPFlag(keyVerbose, pf.Lookup("verbose"))
	_ = a.v.BindEnv(keyHTTPAddr, consul_sdk.EnvHTTPAddr)
	_ = a.v.BindEnv(keyMode, consul_sdk.EnvMode)
	_ = a.v.BindEnv(keyMockSeed, consul_sdk.EnvMockKVSeed)
	a.v.SetDefault(keyJobs, defaultJobs)

	root.AddCommand(
		a.newKVCmd(),
		a.newAgentCmd(),
		a.newSandboxCmd(),
	)
	return root
}

// init reads the optional config file and installs the logger.
func (a *app) init(cmd *cobra.Command) error {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		a.v.SetConfigFile(path)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
	}

	level := slog.LevelInfo
	if a.v.GetBool(keyVerbose) {
		level = slog.LevelDebug
	}
	a.logger = slog.New(tint.NewHandler(a.errOut, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(a.logger)
	return nil
}

// client connects according to the merged configuration.
func (a *app) client() (*consul_sdk.Client, error) {
	cfg := consul_sdk.Config{
		Addr:     strings.TrimSpace(a.v.GetString(keyHTTPAddr)),
		Mode:     a.v.GetString(keyMode),
		MockSeed: a.v.GetString(keyMockSeed),
	}
	client, mode, err := consul_sdk.NewFromConfig(cfg, httpx.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	a.logger.Debug("consul client ready", "mode", mode, "addr", client.Addr())
	return client, nil
}
