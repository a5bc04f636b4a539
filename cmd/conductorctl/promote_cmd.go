package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/openverse/conductor/pkg/ingest"
)

type promoteOpts struct {
	*rootOpts
	model   string
	suffix  string
	alias   string
	noWait  bool
	timeout time.Duration
}

func newPromote(parent *rootOpts) *promoteOpts {
	return &promoteOpts{rootOpts: parent}
}

func (opts *promoteOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "promote",
		Short: "point a model's alias at a previously ingested index",
		RunE:  opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "media model whose alias to move, e.g. image")
	cmd.Flags().StringVarP(&opts.suffix, "suffix", "s", "", "suffix of the index to promote")
	cmd.Flags().StringVarP(&opts.alias, "alias", "a", "", "alias to point at the index; defaults to the model name")
	cmd.Flags().BoolVar(&opts.noWait, "no-wait", false, "submit the job and return without waiting for it")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Minute, "how long to wait for the job to resolve")
	return cmd
}

func (opts *promoteOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errorWantedNoArgs
	}
	if opts.model == "" {
		return newUsageError("please supply a model with --model")
	}
	if opts.suffix == "" {
		return newUsageError("please supply an index suffix with --suffix")
	}
	alias := opts.alias
	if alias == "" {
		alias = opts.model
	}

	return runTask(context.Background(), cmd.OutOrStderr(), opts.API, ingest.TaskRequest{
		Model:       opts.model,
		Action:      ingest.ActionPromote,
		IndexSuffix: opts.suffix,
		Alias:       alias,
	}, opts.noWait, opts.timeout)
}
