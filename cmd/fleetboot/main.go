// Package main is the entry point for the fleetboot CLI.
//
// fleetboot launches servers on Hetzner Cloud from named builds, gives them
// human-readable names and labels, and bootstraps them over SSH in ordered
// stages: package upgrade, package groups, python bundles, scripts and user
// accounts.
//
// A .env file in the working directory is loaded before the command runs,
// so HCLOUD_TOKEN and the FLEETBOOT_* variables can live there.
//
// For detailed usage information, run:
//
//	fleetboot --help
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/imamik/fleetboot/cmd/fleetboot/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
