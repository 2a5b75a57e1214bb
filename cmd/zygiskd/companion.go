// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/zygiskd/lib/arch"
	"github.com/bureau-foundation/zygiskd/lib/companion"
	"github.com/bureau-foundation/zygiskd/lib/config"
	"github.com/bureau-foundation/zygiskd/lib/sysprop"
)

// runCompanion serves one module's companion socket, inherited as fd.
func runCompanion(cfg *config.Config, fd int) error {
	endpoint := os.NewFile(uintptr(fd), "companion")
	if endpoint == nil {
		return fmt.Errorf("invalid companion fd %d", fd)
	}

	logger, closer, err := newLogger(cfg.Log, cfg.SlogLevel(), os.Stderr)
	if err != nil {
		endpoint.Close()
		return fmt.Errorf("creating logger: %w", err)
	}
	defer closer.Close()

	abi := os.Getenv(archEnvironment)
	if abi == "" {
		abi, err = arch.Detect(context.Background(), sysprop.Getprop{})
		if err != nil {
			endpoint.Close()
			return fmt.Errorf("resolving architecture: %w", err)
		}
	}

	host := &companion.Host{
		ModulesDir: cfg.Paths.Modules,
		Arch:       abi,
		NiceName:   filepath.Base(os.Args[0]),
		Logger:     logger.With("role", "companion", "pid", os.Getpid()),
	}
	return host.Run(endpoint)
}
