// Command unitctl is a small operator-facing front end over the
// transaction engine, wired against an in-memory unit registry so the
// engine is exercisable end-to-end without a real service supervisor
// attached. Unit topology is loaded from a tiny YAML fixture rather than
// parsed unit files, since unit-file parsing is explicitly out of scope
// (spec.md §1).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/BryanQuigley/systemd/internal/log"
	"github.com/BryanQuigley/systemd/internal/pctx"
	"github.com/BryanQuigley/systemd/pkg/job"
	"github.com/BryanQuigley/systemd/pkg/memmanager"
	"github.com/BryanQuigley/systemd/pkg/transaction"
	"github.com/BryanQuigley/systemd/pkg/unit"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var topologyPath string
	var mode string

	root := &cobra.Command{
		Use:   "unitctl",
		Short: "Drive the transaction engine against an in-memory unit topology",
	}
	root.PersistentFlags().StringVar(&topologyPath, "topology", "", "path to a topology YAML file (see topology.example.yaml); empty uses a small built-in demo topology")
	root.PersistentFlags().StringVar(&mode, "mode", "fail", "apply mode: fail, replace, or isolate")

	root.AddCommand(newJobCmd("start", job.Start, &topologyPath, &mode))
	root.AddCommand(newJobCmd("stop", job.Stop, &topologyPath, &mode))
	root.AddCommand(newJobCmd("restart", job.Restart, &topologyPath, &mode))
	root.AddCommand(newJobCmd("reload", job.Reload, &topologyPath, &mode))
	root.AddCommand(newIsolateCmd(&topologyPath))

	return root
}

func newJobCmd(use string, t job.Type, topologyPath, mode *string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " UNIT",
		Short: fmt.Sprintf("Request %s on UNIT and apply the resulting transaction", use),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd, *topologyPath, *mode, t, args[0])
		},
	}
}

func newIsolateCmd(topologyPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "isolate UNIT",
		Short: "Start UNIT and stop everything else not pulled in by it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd, *topologyPath, "isolate", job.Start, args[0])
		},
	}
}

func runRequest(cmd *cobra.Command, topologyPath, modeName string, t job.Type, unitName string) error {
	ctx := pctx.Background("unitctl")

	registry, err := loadTopology(topologyPath)
	if err != nil {
		return err
	}

	mode, err := parseMode(modeName)
	if err != nil {
		return err
	}

	mgr := memmanager.New(registry)
	tr := transaction.New(registry)

	if _, err := transaction.AddJobAndDependencies(ctx, tr, t, unitName, nil, true, false, false, false, false); err != nil {
		transaction.Abort(tr)
		return err
	}
	if mode == transaction.Isolate {
		if err := transaction.AddIsolateJobs(ctx, tr, registry); err != nil {
			transaction.Abort(tr)
			return err
		}
	}

	applier := transaction.NewApplier(mgr, transaction.DefaultNotifyConcurrency)
	if err := transaction.Activate(ctx, applier, tr, mode); err != nil {
		transaction.Abort(tr)
		return err
	}

	for _, live := range mgr.LiveJobs() {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", live.Job.Unit, live.Job.Type)
	}
	log.Info(ctx, "request applied")
	return nil
}

func parseMode(name string) (transaction.Mode, error) {
	switch name {
	case "fail", "":
		return transaction.Fail, nil
	case "replace":
		return transaction.Replace, nil
	case "isolate":
		return transaction.Isolate, nil
	default:
		return 0, fmt.Errorf("unknown mode %q (want fail, replace, or isolate)", name)
	}
}

func loadTopology(path string) (*unit.MemRegistry, error) {
	if path == "" {
		return demoTopology(), nil
	}
	return loadTopologyFile(path)
}
