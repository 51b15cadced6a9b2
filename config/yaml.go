package config

import (
	"os"

	"gopkg.in/yaml.v2"
)

// fileDefaults is the shape of an optional --config YAML file. It only
// fills in values the caller left unset (flags > env > file), where
// "unset" means the field still holds its flag default; see
// applyFileDefaults.
type fileDefaults struct {
	URL              string   `yaml:"url"`
	Threads          int      `yaml:"threads"`
	Concurrency      int      `yaml:"concurrency"`
	Duration         string   `yaml:"duration"`
	Method           string   `yaml:"method"`
	Body             string   `yaml:"body"`
	Headers          []string `yaml:"headers"`
	DisableKeepAlive bool     `yaml:"disable_keepalive"`
	Timeout          string   `yaml:"timeout"`
	Latency          bool     `yaml:"latency"`
	H2               bool     `yaml:"h2"`
}

// applyFileDefaults loads path and fills any field of a still at its
// flag.FlagSet default (1 thread, 10 connections, "10s", "GET", or an
// empty/false value). It compares values only: a flag or environment
// variable that was set explicitly to that same default value is
// replaced by the file's value.
func applyFileDefaults(a *Args, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var fd fileDefaults
	if err := yaml.Unmarshal(data, &fd); err != nil {
		return err
	}
	if a.URL == "" {
		a.URL = fd.URL
	}
	if a.Threads == 1 && fd.Threads != 0 {
		a.Threads = fd.Threads
	}
	if a.Concurrency == 10 && fd.Concurrency != 0 {
		a.Concurrency = fd.Concurrency
	}
	if a.Duration == "10s" && fd.Duration != "" {
		a.Duration = fd.Duration
	}
	if a.Method == "GET" && fd.Method != "" {
		a.Method = fd.Method
	}
	if a.Body == "" {
		a.Body = fd.Body
	}
	if len(a.Headers) == 0 {
		a.Headers = fd.Headers
	}
	if !a.DisableKeepAlive {
		a.DisableKeepAlive = fd.DisableKeepAlive
	}
	if a.Timeout == "" {
		a.Timeout = fd.Timeout
	}
	if !a.Latency {
		a.Latency = fd.Latency
	}
	if !a.H2 {
		a.H2 = fd.H2
	}
	return nil
}
