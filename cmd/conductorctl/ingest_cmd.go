package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/openverse/conductor/pkg/ingest"
)

type ingestOpts struct {
	*rootOpts
	model   string
	suffix  string
	noWait  bool
	timeout time.Duration
}

func newIngest(parent *rootOpts) *ingestOpts {
	return &ingestOpts{rootOpts: parent}
}

func (opts *ingestOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "build a new index for a model from upstream data",
		RunE:  opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "media model to ingest, e.g. image")
	cmd.Flags().StringVarP(&opts.suffix, "suffix", "s", "", "suffix of the index to build, e.g. abc123")
	cmd.Flags().BoolVar(&opts.noWait, "no-wait", false, "submit the job and return without waiting for it")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 4*time.Hour, "how long to wait for the job to resolve")
	return cmd
}

func (opts *ingestOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errorWantedNoArgs
	}
	if opts.model == "" {
		return newUsageError("please supply a model with --model")
	}
	if opts.suffix == "" {
		return newUsageError("please supply an index suffix with --suffix")
	}

	return runTask(context.Background(), cmd.OutOrStderr(), opts.API, ingest.TaskRequest{
		Model:       opts.model,
		Action:      ingest.ActionIngestUpstream,
		IndexSuffix: opts.suffix,
	}, opts.noWait, opts.timeout)
}
