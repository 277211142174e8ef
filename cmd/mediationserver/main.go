// Package main is the mediation server's entrypoint: it loads
// configuration, wires the session core, and serves WebSocket connections
// until an interrupt or SIGTERM asks it to drain and exit.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/pmbridge/mediation-server/internal/config"
	"github.com/pmbridge/mediation-server/pkg/logger"
)

// Version is set via -ldflags at build time.
var Version = "0.1.0"

var flagConfig = flag.String("config", "", "path to the YAML config file")

func main() {
	flag.Parse()
	log := logger.New().With("version", Version)

	log.Info("starting mediation server...")

	cfg, err := config.Load(*flagConfig, log)
	if err != nil {
		log.Errorf("invalid configuration: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := newServer(cfg, log)

	shutdownDone := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		srv.shutdown(ctx)
		close(shutdownDone)
	}()

	srv.start()

	<-shutdownDone
}
