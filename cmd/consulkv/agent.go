package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/consulvault/consul_sdk_go/pkg/agent"
)

func (a *app) newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage services and checks on the local agent",
	}
	cmd.AddCommand(
		a.newAgentServicesCmd(),
		a.newAgentChecksCmd(),
		a.newAgentRegisterCmd(),
		a.newAgentDeregisterCmd(),
	)
	return cmd
}

func (a *app) newAgentServicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "services",
		Short: "List registered services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			services, err := client.Agent.Services(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSERVICE\tADDRESS\tTAGS")
			for _, id := range sortedKeys(services) {
				svc := services[id]
				addr := svc.Address
				if svc.Port != 0 {
					addr += ":" + strconv.Itoa(svc.Port)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", svc.ID, svc.Service, addr, strings.Join(svc.Tags, ","))
			}
			return tw.Flush()
		},
	}
}

func (a *app) newAgentChecksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checks",
		Short: "List registered checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			checks, err := client.Agent.Checks(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CHECK\tNAME\tSTATUS\tSERVICE\tTYPE")
			for _, id := range sortedKeys(checks) {
				chk := checks[id]
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", chk.CheckID, chk.Name, chk.Status, chk.ServiceID, chk.Type)
			}
			return tw.Flush()
		},
	}
}

func (a *app) newAgentRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register [FILE|-]",
		Short: "Register a service or, with --check, a check from a JSON definition",
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
			dec := json.NewDecoder(src)
			dec.DisallowUnknownFields()

			client, err := a.client()
			if err != nil {
				return err
			}

			if isCheck, _ := cmd.Flags().GetBool("check"); isCheck {
				var chk agent.Check
				if err := dec.Decode(&chk); err != nil {
					return fmt.Errorf("decode check definition: %w", err)
				}
				if err := client.Agent.RegisterCheck(cmd.Context(), chk); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Registered check: %s\n", chk.Name)
				return nil
			}

			var def agent.ServiceDefinition
			if err := dec.Decode(&def); err != nil {
				return fmt.Errorf("decode service definition: %w", err)
			}
			if err := client.Agent.RegisterService(cmd.Context(), def); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Registered service: %s\n", def.Name)
			return nil
		},
	}
	cmd.Flags().Bool("check", false, "the definition is a check, not a service")
	return cmd
}

func (a *app) newAgentDeregisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deregister ID",
		Short: "Deregister a service or, with --check, a check",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			if isCheck, _ := cmd.Flags().GetBool("check"); isCheck {
				if err := client.Agent.DeregisterCheck(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Deregistered check: %s\n", args[0])
				return nil
			}
			if err := client.Agent.DeregisterService(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deregistered service: %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().Bool("check", false, "ID names a check, not a service")
	return cmd
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
