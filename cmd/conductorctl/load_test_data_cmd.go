package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/openverse/conductor/pkg/ingest"
)

type loadTestDataOpts struct {
	*rootOpts
	model   string
	noWait  bool
	timeout time.Duration
}

func newLoadTestData(parent *rootOpts) *loadTestDataOpts {
	return &loadTestDataOpts{rootOpts: parent}
}

func (opts *loadTestDataOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load-test-data",
		Short: "load sample data for a model into the upstream database",
		RunE:  opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "media model to load sample data for, e.g. image")
	cmd.Flags().BoolVar(&opts.noWait, "no-wait", false, "submit the job and return without waiting for it")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Minute, "how long to wait for the job to resolve")
	return cmd
}

func (opts *loadTestDataOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errorWantedNoArgs
	}
	if opts.model == "" {
		return newUsageError("please supply a model with --model")
	}

	return runTask(context.Background(), cmd.OutOrStderr(), opts.API, ingest.TaskRequest{
		Model:  opts.model,
		Action: ingest.ActionLoadTestData,
	}, opts.noWait, opts.timeout)
}
