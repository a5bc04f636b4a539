// Package config loads the conductor's stack description: which
// services to gate on, how patiently to wait for them, and how
// lifecycle tasks are retried and polled.
package config

import (
	"io/ioutil"
	"time"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"

	"github.com/openverse/conductor/pkg/probe"
	"github.com/openverse/conductor/pkg/retry"
)

// Duration is a time.Duration that (un)marshals as a string like
// "90s" or "4h" in YAML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return errors.Wrapf(err, "parsing duration %q", s)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

type GateConfig struct {
	Timeout  Duration `yaml:"timeout"`
	Interval Duration `yaml:"interval"`
}

type RetryConfig struct {
	MaxAttempts int      `yaml:"maxAttempts"`
	BackoffBase Duration `yaml:"backoffBase"`
	BackoffCap  Duration `yaml:"backoffCap"`
}

// Policy converts the file representation into the retry package's
// backoff policy.
func (r RetryConfig) Policy() retry.Policy {
	return retry.Policy{
		Base:        r.BackoffBase.Duration,
		Cap:         r.BackoffCap.Duration,
		MaxAttempts: r.MaxAttempts,
	}
}

type TaskConfig struct {
	PollTimeout  Duration `yaml:"pollTimeout"`
	PollInterval Duration `yaml:"pollInterval"`
}

type Config struct {
	Services []probe.ServiceEndpoint `yaml:"services"`
	Gate     GateConfig              `yaml:"gate"`
	Retry    RetryConfig             `yaml:"retry"`
	Tasks    TaskConfig              `yaml:"tasks"`
}

// Default is the stack conductord expects when no config file is
// given: the Openverse dev compose stack on localhost.
func Default() Config {
	return Config{
		Services: []probe.ServiceEndpoint{
			{Name: "search-backend", URL: "http://localhost:9200/_cluster/health"},
			{Name: "ingestion-server", URL: "http://localhost:8001/"},
			{Name: "catalog-api", URL: "http://localhost:8000/healthcheck/"},
		},
		Gate: GateConfig{
			Timeout:  Duration{300 * time.Second},
			Interval: Duration{5 * time.Second},
		},
		Retry: RetryConfig{
			MaxAttempts: 5,
			BackoffBase: Duration{1 * time.Second},
			BackoffCap:  Duration{30 * time.Second},
		},
		Tasks: TaskConfig{
			PollTimeout:  Duration{4 * time.Hour},
			PollInterval: Duration{5 * time.Second},
		},
	}
}

// Load reads a config file, layered over the defaults. Unknown keys
// are rejected so typos don't silently fall back to defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "reading config file %s", path)
	}
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing config file %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrapf(err, "validating config file %s", path)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	seen := map[string]bool{}
	for _, s := range c.Services {
		if s.Name == "" {
			return errors.New("service with empty name")
		}
		if s.URL == "" {
			return errors.Errorf("service %s has no URL", s.Name)
		}
		if seen[s.Name] {
			return errors.Errorf("duplicate service name %s", s.Name)
		}
		seen[s.Name] = true
	}
	if c.Gate.Timeout.Duration < 0 || c.Gate.Interval.Duration < 0 {
		return errors.New("gate timeout and interval must not be negative")
	}
	if c.Retry.MaxAttempts < 0 {
		return errors.New("retry maxAttempts must not be negative")
	}
	return nil
}
