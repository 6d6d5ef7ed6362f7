package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/taskping/taskping/network/ping"
	"github.com/taskping/taskping/pkg/icmp"
)

// Config mirrors the command line for file-driven invocation. Flags given
// on the command line override file values.
type Config struct {
	Targets    []string `yaml:"targets"`
	Count      int      `yaml:"count"`
	Interval   Duration `yaml:"interval"`
	Size       int      `yaml:"size"`
	Timeout    Duration `yaml:"timeout"`
	Nameserver string   `yaml:"nameserver"`

	// ResolveTimeout bounds one DNS exchange in nameserver mode.
	ResolveTimeout Duration `yaml:"resolve_timeout"`

	MetricsListen string `yaml:"metrics_listen"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Duration accepts yaml scalars in time.ParseDuration syntax ("1s",
// "500ms") or bare integers meaning seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var secs int
	if err := value.Decode(&secs); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("bad duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func defaultConfig() *Config {
	cfg := &Config{
		Count:    ping.DefaultCount,
		Interval: Duration(ping.DefaultInterval),
		Size:     ping.DefaultSize,
		Timeout:  Duration(ping.DefaultTimeout),
	}
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return cfg
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.Count < 0 {
		return fmt.Errorf("count must not be negative, got %d", c.Count)
	}
	if iv := time.Duration(c.Interval); iv < time.Second || iv > 3600*time.Second {
		return fmt.Errorf("interval must be within [1s, 3600s], got %v", iv)
	}
	if c.Size < icmp.MinPayload || c.Size > icmp.MaxPayload {
		return fmt.Errorf("size must be within [%d, %d], got %d",
			icmp.MinPayload, icmp.MaxPayload, c.Size)
	}
	if to := time.Duration(c.Timeout); to < time.Second || to > 30*time.Second {
		return fmt.Errorf("timeout must be within [1s, 30s], got %v", to)
	}
	return nil
}
