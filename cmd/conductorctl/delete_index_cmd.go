package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/openverse/conductor/pkg/ingest"
)

type deleteIndexOpts struct {
	*rootOpts
	model   string
	suffix  string
	alias   string
	noWait  bool
	timeout time.Duration
}

func newDeleteIndex(parent *rootOpts) *deleteIndexOpts {
	return &deleteIndexOpts{rootOpts: parent}
}

func (opts *deleteIndexOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete-index",
		Short: "delete a superseded index, refusing anything an alias still serves",
		RunE:  opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "media model the index belongs to, e.g. image")
	cmd.Flags().StringVarP(&opts.suffix, "suffix", "s", "", "suffix of the index to delete")
	cmd.Flags().StringVarP(&opts.alias, "alias", "a", "", "alias guarding the index; defaults to the model name")
	cmd.Flags().BoolVar(&opts.noWait, "no-wait", false, "submit the job and return without waiting for it")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Minute, "how long to wait for the job to resolve")
	return cmd
}

func (opts *deleteIndexOpts) RunE(cmd *cobra.Command, args []string) error {
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
		Action:      ingest.ActionDeleteIndex,
		IndexSuffix: opts.suffix,
		Alias:       alias,
	}, opts.noWait, opts.timeout)
}
