// Package main provides maintenance utilities for the order engine.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/louisbranch/brigade/internal/platform/config"
	"github.com/louisbranch/brigade/internal/platform/otel"
	"github.com/louisbranch/brigade/internal/tools/maintenance"
)

func main() {
	cfg, err := maintenance.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	shutdown, err := otel.Setup(ctx, "brigade-maintenance")
	if err != nil {
		config.Exitf("Error: setup tracing: %v", err)
	}
	defer func() {
		_ = shutdown(context.Background())
	}()

	if err := maintenance.Run(ctx, cfg, os.Stdout, os.Stderr); err != nil {
		config.Exitf("Error: %v", err)
	}
}
