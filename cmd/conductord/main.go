package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/openverse/conductor/pkg/checkpoint"
	"github.com/openverse/conductor/pkg/config"
	"github.com/openverse/conductor/pkg/daemon"
	"github.com/openverse/conductor/pkg/gate"
	daemonhttp "github.com/openverse/conductor/pkg/http/daemon"
	"github.com/openverse/conductor/pkg/ingest"
	"github.com/openverse/conductor/pkg/lifecycle"
	"github.com/openverse/conductor/pkg/probe"
	"github.com/openverse/conductor/pkg/search"
	"github.com/openverse/conductor/pkg/stack"
)

const (
	product         = "openverse-conductor"
	shutdownTimeout = 25 * time.Second
)

var version = "unversioned"

func main() {
	// Flag domain.
	fs := pflag.NewFlagSet("default", pflag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "DESCRIPTION\n")
		fmt.Fprintf(os.Stderr, "  conductord brings up the Openverse stack and drives index lifecycles.\n")
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "FLAGS\n")
		fs.PrintDefaults()
	}

	var (
		versionFlag  = fs.Bool("version", false, "print the version and exit")
		listenAddr   = fs.StringP("listen", "l", ":3030", "listen address for the conductor API and /metrics")
		configFile   = fs.String("config", "", "path to a stack config file; built-in defaults are used when empty")
		ingestionURL = fs.String("ingestion-url", "http://localhost:8001", "base URL of the ingestion server")
		searchURL    = fs.String("search-url", "http://localhost:9200", "base URL of the search backend")
		gateTimeout  = fs.Duration("gate-timeout", 0, "overrides the config's readiness gate timeout when > 0")
		gateInterval = fs.Duration("gate-interval", 0, "overrides the config's readiness gate poll interval when > 0")
		skipGate     = fs.Bool("skip-gate", false, "serve the API without waiting for the stack to come ready")
	)
	fs.Parse(os.Args)

	if *versionFlag {
		fmt.Println(version)
		os.Exit(0)
	}

	// Logger domain.
	var logger log.Logger
	{
		logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}
	logger.Log("version", version)

	// Config component.
	var cfg config.Config
	{
		logger := log.With(logger, "component", "config")
		if *configFile != "" {
			var err error
			cfg, err = config.Load(*configFile)
			if err != nil {
				logger.Log("err", err)
				os.Exit(1)
			}
			logger.Log("file", *configFile, "services", len(cfg.Services))
		} else {
			cfg = config.Default()
			logger.Log("file", "none", "services", len(cfg.Services))
		}
		if *gateTimeout > 0 {
			cfg.Gate.Timeout.Duration = *gateTimeout
		}
		if *gateInterval > 0 {
			cfg.Gate.Interval.Duration = *gateInterval
		}
	}

	// Error channel and shutdown triggers.
	errc := make(chan error)
	shutdown := make(chan struct{})
	shutdownWg := &sync.WaitGroup{}

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	// Backend clients.
	ingestClient := ingest.NewHTTPClient(http.DefaultClient, *ingestionURL)
	searchClient := search.NewHTTPClient(http.DefaultClient, *searchURL)

	// Stack bring-up. A signal during the wait cancels the gates and
	// the daemon exits without serving.
	var outcomes []gate.Outcome
	if !*skipGate {
		logger := log.With(logger, "component", "stack")
		g := gate.New(probe.NewHTTP())
		g.Timeout = cfg.Gate.Timeout.Duration
		g.Interval = cfg.Gate.Interval.Duration
		g.Observer = func(endpoint probe.ServiceEndpoint, attempt int, result probe.Result) {
			if !result.Ready() {
				logger.Log("service", endpoint.Name, "attempt", attempt, "ready", false, "detail", result.Error)
			}
		}

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			c := make(chan os.Signal, 1)
			signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
			select {
			case <-c:
				cancel()
			case <-shutdown:
			}
		}()

		var err error
		outcomes, err = (&stack.Stack{
			Gate:     g,
			Services: cfg.Services,
			Logger:   logger,
		}).Up(ctx)
		cancel()
		if err != nil {
			logger.Log("err", err)
			os.Exit(1)
		}
	}

	// Lifecycle coordinator component.
	var coordinator *lifecycle.Coordinator
	{
		logger := log.With(logger, "component", "lifecycle")
		coordinator = lifecycle.NewCoordinator(ingestClient, searchClient, lifecycle.Config{
			TaskPollInterval: cfg.Tasks.PollInterval.Duration,
			TaskPollTimeout:  cfg.Tasks.PollTimeout.Duration,
			Retry:            cfg.Retry.Policy(),
		}, logger, clockwork.NewRealClock(), shutdown, shutdownWg)
	}

	// The daemon is the server side of the conductor API.
	d := &daemon.Daemon{
		V:           version,
		Coordinator: coordinator,
		Ingest:      ingestClient,
		Search:      searchClient,
		Logger:      log.With(logger, "component", "daemon"),
	}
	d.SetGateOutcomes(outcomes)

	// HTTP transport component.
	{
		logger := log.With(logger, "component", "http")
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			handler := daemonhttp.NewHandler(d, daemonhttp.NewRouter())
			mux.Handle("/", handler)
			logger.Log("addr", *listenAddr)
			errc <- http.ListenAndServe(*listenAddr, mux)
		}()
	}

	checkpoint.CheckForUpdates(product, version, nil, log.With(logger, "component", "checkpoint"))

	// Wait for a fatal error or a signal, then drain the workers.
	shutdownErr := <-errc
	logger.Log("exiting", shutdownErr)
	close(shutdown)

	done := make(chan struct{})
	go func() {
		shutdownWg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		logger.Log("err", "workers did not drain before the shutdown deadline")
	}
}
