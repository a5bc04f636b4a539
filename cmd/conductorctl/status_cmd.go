package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type statusOpts struct {
	*rootOpts
	model string
}

func newStatus(parent *rootOpts) *statusOpts {
	return &statusOpts{rootOpts: parent}
}

func (opts *statusOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "report the conductor's health, gate outcomes and alias state",
		RunE:  opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "limit alias state to one media model")
	return cmd
}

func (opts *statusOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errorWantedNoArgs
	}

	ctx := context.Background()

	version, err := opts.API.Version(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "conductord %s\n", version)

	if err := opts.API.Ping(ctx); err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "backends: unhealthy: %v\n", err)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "backends: healthy")
	}

	outcomes, err := opts.API.GateOutcomes(ctx)
	if err != nil {
		return err
	}
	if len(outcomes) > 0 {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
		fmt.Fprintln(w, "SERVICE\tSTATE\tATTEMPTS\tELAPSED")
		for _, o := range outcomes {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", o.Service, o.State, o.Attempts, o.Elapsed)
		}
		w.Flush()
	}

	if opts.model == "" {
		return nil
	}
	aliases, err := opts.API.AliasState(ctx, opts.model)
	if err != nil {
		return err
	}
	if len(aliases) > 0 {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
		fmt.Fprintln(w, "ALIAS\tSUFFIX")
		for alias, suffix := range aliases {
			fmt.Fprintf(w, "%s\t%s\n", alias, suffix)
		}
		w.Flush()
	}
	return nil
}
