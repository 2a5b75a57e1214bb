// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/zygiskd/lib/config"
	"github.com/bureau-foundation/zygiskd/lib/process"
	"github.com/bureau-foundation/zygiskd/lib/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

func run(args []string) error {
	var (
		configPath  string
		diagnostic  bool
		showVersion bool
	)

	flagSet := pflag.NewFlagSet("zygiskd", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "configuration file (default: $"+config.EnvironmentVariable+", then built-in defaults)")
	flagSet.BoolVar(&diagnostic, "diagnostic", false, "status: print the raw file in CBOR diagnostic notation")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	flagSet.SetInterspersed(true)

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	if showVersion {
		fmt.Printf("zygiskd %s\n", version.Full())
		return nil
	}

	if configPath != "" {
		// Companions re-executed by this daemon read the same file.
		if err := os.Setenv(config.EnvironmentVariable, configPath); err != nil {
			return fmt.Errorf("exporting %s: %w", config.EnvironmentVariable, err)
		}
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	positional := flagSet.Args()
	command := "daemon"
	if len(positional) > 0 {
		command = positional[0]
	}

	switch command {
	case "daemon":
		if len(positional) > 1 {
			return fmt.Errorf("daemon takes no arguments, got %q", positional[1:])
		}
		return runDaemon(cfg)
	case "companion":
		if len(positional) != 2 {
			return fmt.Errorf("usage: zygiskd companion FD")
		}
		fd, err := strconv.Atoi(positional[1])
		if err != nil || fd < 0 {
			return fmt.Errorf("invalid companion fd %q", positional[1])
		}
		return runCompanion(cfg, fd)
	case "status":
		if len(positional) > 1 {
			return fmt.Errorf("status takes no arguments, got %q", positional[1:])
		}
		return runStatus(cfg, os.Stdout, diagnostic)
	default:
		return fmt.Errorf("unknown command %q (want daemon, companion, or status)", command)
	}
}

func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
