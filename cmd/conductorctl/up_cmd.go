package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/spf13/cobra"

	"github.com/openverse/conductor/pkg/config"
	"github.com/openverse/conductor/pkg/gate"
	"github.com/openverse/conductor/pkg/probe"
	"github.com/openverse/conductor/pkg/stack"
)

type upOpts struct {
	*rootOpts
	configFile string
	timeout    time.Duration
	interval   time.Duration
	quiet      bool
}

func newUp(parent *rootOpts) *upOpts {
	return &upOpts{rootOpts: parent}
}

func (opts *upOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "up",
		Short: "wait for the stack's services to come ready, in dependency order",
		RunE:  opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.configFile, "config", "c", "", "path to a stack config file; built-in defaults are used when empty")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "overrides the config's gate timeout when > 0")
	cmd.Flags().DurationVar(&opts.interval, "interval", 0, "overrides the config's gate poll interval when > 0")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "only report services that fail to come ready")
	return cmd
}

func (opts *upOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errorWantedNoArgs
	}

	cfg := config.Default()
	if opts.configFile != "" {
		var err error
		cfg, err = config.Load(opts.configFile)
		if err != nil {
			return err
		}
	}
	if opts.timeout > 0 {
		cfg.Gate.Timeout.Duration = opts.timeout
	}
	if opts.interval > 0 {
		cfg.Gate.Interval.Duration = opts.interval
	}

	g := gate.New(probe.NewHTTP())
	g.Timeout = cfg.Gate.Timeout.Duration
	g.Interval = cfg.Gate.Interval.Duration
	if !opts.quiet {
		g.Observer = func(endpoint probe.ServiceEndpoint, attempt int, result probe.Result) {
			if !result.Ready() {
				fmt.Fprintf(cmd.OutOrStderr(), "%s: attempt %d: %s\n", endpoint.Name, attempt, result.Error)
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-c:
			cancel()
		case <-ctx.Done():
		}
	}()

	logger := log.NewNopLogger()
	if !opts.quiet {
		logger = log.NewLogfmtLogger(cmd.OutOrStderr())
	}

	outcomes, err := (&stack.Stack{
		Gate:     g,
		Services: cfg.Services,
		Logger:   logger,
	}).Up(ctx)
	for _, o := range outcomes {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tattempts=%d\telapsed=%s\n", o.Service, o.State, o.Attempts, o.Elapsed)
	}
	return err
}
