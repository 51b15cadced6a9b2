// Package config resolves the CLI surface described in spec.md §6 into an
// immutable RunConfig the core never mutates again. Flag parsing follows
// hey.go's style: plain flag.String/flag.Int vars plus a custom
// flag.Value (headerSlice) for the repeatable --header flag. Every flag
// also has an identically-named environment variable fallback, consulted
// only when the flag was not given explicitly on the command line.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Args mirrors the CLI surface of spec.md §6 before any URL/TLS/body
// resolution has happened; Resolve does that resolution.
type Args struct {
	URL              string
	Threads          int
	Concurrency      int
	Duration         string
	Method           string
	Body             string
	Headers          []string
	DisableKeepAlive bool
	Timeout          string
	Latency          bool
	H2               bool
	ConfigFile       string
}

// headerSlice accumulates repeated --header flag occurrences, the same
// flag.Value shape hey.go uses for its own -H flag.
type headerSlice []string

func (h *headerSlice) String() string { return fmt.Sprintf("%s", []string(*h)) }

func (h *headerSlice) Set(value string) error {
	*h = append(*h, value)
	return nil
}

// ParseArgs parses argv (excluding the program name) into Args, falling
// back to the environment for any flag not given explicitly on the
// command line. getenv is injected for testability; pass os.LookupEnv in
// production.
func ParseArgs(argv []string, getenv func(string) (string, bool)) (*Args, error) {
	fs := flag.NewFlagSet("ember", flag.ContinueOnError)

	threads := fs.Int("threads", 1, "number of OS threads to spread connections across")
	concurrency := fs.Int("concurrency", 10, "total number of connections to hold open")
	duration := fs.String("duration", "10s", "wall-clock duration of the measurement window")
	method := fs.String("method", "GET", "HTTP method to replay")
	body := fs.String("body", "", "literal request body, or @path to read it from a file")
	timeout := fs.String("timeout", "", "optional per-request timeout")
	latency := fs.Bool("latency", false, "record a per-request latency histogram")
	var h2 bool
	fs.BoolVar(&h2, "2", false, "use HTTP/2 (shorthand for --h2)")
	fs.BoolVar(&h2, "h2", false, "use HTTP/2")
	disableKeepAlive := fs.Bool("disable-keepalive", false, "disable HTTP/1 keep-alive")
	configFile := fs.String("config", "", "optional YAML file supplying defaults")

	var headers headerSlice
	fs.Var(&headers, "header", "request header as 'Key: Value', repeatable")

	if err := fs.Parse(argv); err != nil {
		return nil, err
	}

	a := &Args{
		Threads:          *threads,
		Concurrency:      *concurrency,
		Duration:         *duration,
		Method:           *method,
		Body:             *body,
		Headers:          headers,
		DisableKeepAlive: *disableKeepAlive,
		Timeout:          *timeout,
		Latency:          *latency,
		H2:               h2,
		ConfigFile:       *configFile,
	}

	if fs.NArg() > 0 {
		a.URL = fs.Arg(0)
	}

	applyEnvFallbacks(a, fs, getenv)

	if a.ConfigFile != "" {
		if err := applyFileDefaults(a, a.ConfigFile); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", a.ConfigFile, err)
		}
	}

	if a.URL == "" {
		return nil, fmt.Errorf("a target URL is required")
	}
	return a, nil
}

// wasSet reports whether the named flag was explicitly given on the
// command line, used to decide whether an environment or file default may
// still override it.
func wasSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// applyEnvFallbacks fills any flag not given explicitly on the command line
// (and the URL, when no positional argument was given) from the
// identically-named environment variable, per spec.md §6.
func applyEnvFallbacks(a *Args, fs *flag.FlagSet, getenv func(string) (string, bool)) {
	if a.URL == "" {
		if v, ok := getenv("URL"); ok {
			a.URL = v
		}
	}
	if !wasSet(fs, "threads") {
		if v, ok := getenv("THREADS"); ok {
			if n, err := strconv.Atoi(v); err == nil {
				a.Threads = n
			}
		}
	}
	if !wasSet(fs, "concurrency") {
		if v, ok := getenv("CONCURRENCY"); ok {
			if n, err := strconv.Atoi(v); err == nil {
				a.Concurrency = n
			}
		}
	}
	if !wasSet(fs, "duration") {
		if v, ok := getenv("DURATION"); ok {
			a.Duration = v
		}
	}
	if !wasSet(fs, "method") {
		if v, ok := getenv("METHOD"); ok {
			a.Method = v
		}
	}
	if !wasSet(fs, "body") {
		if v, ok := getenv("BODY"); ok {
			a.Body = v
		}
	}
	if !wasSet(fs, "header") {
		if v, ok := getenv("HEADER"); ok && v != "" {
			a.Headers = strings.Split(v, "\n")
		}
	}
	if !wasSet(fs, "timeout") {
		if v, ok := getenv("TIMEOUT"); ok {
			a.Timeout = v
		}
	}
	if !wasSet(fs, "latency") {
		if v, ok := getenv("LATENCY"); ok {
			a.Latency = isTruthy(v)
		}
	}
	if !wasSet(fs, "2") && !wasSet(fs, "h2") {
		if v, ok := getenv("H2"); ok {
			a.H2 = isTruthy(v)
		}
	}
	if !wasSet(fs, "disable-keepalive") {
		if v, ok := getenv("DISABLE_KEEPALIVE"); ok {
			a.DisableKeepAlive = isTruthy(v)
		}
	}
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// loadBody resolves the --body value: a literal string, or the contents of
// a file when prefixed with '@', matching the original Rust CLI's
// convention (spec.md §6, supplemented per SPEC_FULL.md §4).
func loadBody(v string) ([]byte, error) {
	if v == "" {
		return nil, nil
	}
	if strings.HasPrefix(v, "@") {
		path := v[1:]
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading body file %s: %w", path, err)
		}
		return data, nil
	}
	return []byte(v), nil
}
