// Command ember is an HTTP load generator: given one target URL, it opens
// a fixed number of connections across a configurable set of threads,
// replays a prepared request over each for a bounded duration, and
// reports aggregate throughput, byte counts, and optional latency and
// status/error breakdowns. See spec.md for the full design.
package main

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/emberload/ember/conductor"
	"github.com/emberload/ember/config"
)

func main() {
	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	args, err := config.ParseArgs(os.Args[1:], os.LookupEnv)
	if err != nil {
		log.WithError(err).Error("invalid arguments")
		os.Exit(1)
	}

	cfg, err := config.Resolve(args)
	if err != nil {
		log.WithError(err).Error("invalid configuration")
		os.Exit(1)
	}

	log.WithFields(logrus.Fields{
		"url":         cfg.URL.String(),
		"addr":        cfg.Addr,
		"protocol":    cfg.Protocol.String(),
		"threads":     cfg.Threads,
		"concurrency": cfg.Concurrency,
		"duration":    cfg.Duration,
	}).Info("starting run")

	rep, err := conductor.Run(context.Background(), cfg)
	if err != nil {
		log.WithError(err).Error("run failed")
		os.Exit(1)
	}

	log.WithFields(logrus.Fields{
		"ok":     rep.OK,
		"errors": rep.Errors.Total(),
	}).Info("run complete")

	rep.WriteSummary(os.Stdout)

	// Configuration errors are the only non-zero exit; a completed
	// measurement window, even one where every request failed, is a
	// successful invocation of the tool (spec.md §6).
	os.Exit(0)
}
