package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openverse/conductor/pkg/api"
	transport "github.com/openverse/conductor/pkg/http"
	"github.com/openverse/conductor/pkg/http/client"
)

const (
	EnvVariableURL   = "CONDUCTOR_URL"
	EnvVariableToken = "CONDUCTOR_TOKEN"
)

type rootOpts struct {
	URL   string
	Token string
	API   api.Server
}

func newRoot() *rootOpts {
	return &rootOpts{}
}

var rootLongHelp = strings.TrimSpace(`
conductorctl drives the Openverse stack through conductord.

Workflow:
  conductorctl up                                       # Wait for the stack to come ready.
  conductorctl ingest --model image --suffix abc123     # Build a new index from upstream.
  conductorctl promote --model image --suffix abc123    # Point the alias at the new index.
  conductorctl delete-index --model image --suffix old1 # Remove a superseded index.
  conductorctl status                                   # What is the conductor looking after?
`)

func (opts *rootOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "conductorctl",
		Long:              rootLongHelp,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: opts.PersistentPreRunE,
	}
	cmd.PersistentFlags().StringVarP(&opts.URL, "url", "u", "http://localhost:3030",
		fmt.Sprintf("base URL of the conductord API server; you can also set the environment variable %s", EnvVariableURL))
	cmd.PersistentFlags().StringVarP(&opts.Token, "token", "t", "",
		fmt.Sprintf("client token; you can also set the environment variable %s", EnvVariableToken))

	cmd.AddCommand(
		newUp(opts).Command(),
		newLoadTestData(opts).Command(),
		newIngest(opts).Command(),
		newPromote(opts).Command(),
		newDeleteIndex(opts).Command(),
		newStatus(opts).Command(),
		newVersionCommand(),
	)

	return cmd
}

func (opts *rootOpts) PersistentPreRunE(cmd *cobra.Command, _ []string) error {
	url := os.Getenv(EnvVariableURL)
	if cmd.Flags().Changed("url") || url == "" {
		url = opts.URL
	}
	token := os.Getenv(EnvVariableToken)
	if cmd.Flags().Changed("token") || token == "" {
		token = opts.Token
	}

	opts.API = client.New(http.DefaultClient, transport.NewAPIRouter(), url, client.Token(token))
	return nil
}
