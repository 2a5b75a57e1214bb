// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package magisk reads root policy from a Magisk installation.
//
// Presence and version come from "magisk -V", which prints the integer
// version code. Policy lives in Magisk's SQLite database: the policies
// table maps app uids to a grant level (2 is "allow") and the denylist
// table lists package names whose processes must not see root mounts.
// The database belongs to magiskd and is only ever opened read-only.
package magisk

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strconv"

	"github.com/bureau-foundation/zygiskd/lib/packages"
	"github.com/bureau-foundation/zygiskd/lib/rootimpl"
	"github.com/bureau-foundation/zygiskd/lib/sqlitepool"
)

const (
	// MinVersion is the oldest Magisk version code whose denylist and
	// policy schema this backend understands.
	MinVersion = 25208

	// DefaultDatabasePath is Magisk's policy database.
	DefaultDatabasePath = "/data/adb/magisk.db"

	policyAllow = 2
)

// Runner runs a command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Config holds the backend's collaborators. Zero fields take the
// on-device defaults.
type Config struct {
	DatabasePath    string
	PackageListPath string
	Logger          *slog.Logger
	Run             Runner
}

// Backend is the Magisk [rootimpl.Backend].
type Backend struct {
	logger          *slog.Logger
	run             Runner
	databasePath    string
	packageListPath string
	pool            *sqlitepool.Pool
}

// New returns a backend. The policy database is opened by Detect.
func New(cfg Config) *Backend {
	backend := &Backend{
		logger:          cfg.Logger,
		run:             cfg.Run,
		databasePath:    cfg.DatabasePath,
		packageListPath: cfg.PackageListPath,
	}
	if backend.logger == nil {
		backend.logger = slog.New(slog.DiscardHandler)
	}
	if backend.run == nil {
		backend.run = runCommand
	}
	if backend.databasePath == "" {
		backend.databasePath = DefaultDatabasePath
	}
	if backend.packageListPath == "" {
		backend.packageListPath = packages.DefaultPath
	}
	return backend
}

// Name implements [rootimpl.Backend].
func (b *Backend) Name() string { return "magisk" }

// Detect implements [rootimpl.Backend]. A missing magisk binary, a
// failing command, or unparseable output all mean Magisk is absent.
// On a supported version the policy pool is opened.
func (b *Backend) Detect() rootimpl.Status {
	output, err := b.run(context.Background(), "magisk", "-V")
	if err != nil {
		if !errors.Is(err, exec.ErrNotFound) {
			b.logger.Debug("magisk version probe failed", "error", err)
		}
		return rootimpl.Absent
	}
	version, err := strconv.Atoi(string(bytes.TrimSpace(output)))
	if err != nil {
		b.logger.Warn("unparseable magisk version", "output", string(output))
		return rootimpl.Absent
	}

	status := rootimpl.Supported
	if version < MinVersion {
		status = rootimpl.TooOld
	}
	b.logger.Info("magisk detected", "version", version, "status", status)

	if status == rootimpl.Supported {
		pool, err := sqlitepool.Open(sqlitepool.Config{
			Path:   b.databasePath,
			Logger: b.logger,
		})
		if err != nil {
			b.logger.Error("opening magisk database", "path", b.databasePath, "error", err)
		} else {
			b.pool = pool
		}
	}
	return status
}

// UIDGrantedRoot implements [rootimpl.Backend].
func (b *Backend) UIDGrantedRoot(uid int32) bool {
	if b.pool == nil {
		return false
	}
	found, err := b.pool.Exists(context.Background(),
		"SELECT 1 FROM policies WHERE uid = ? AND policy = ?", int64(uid), policyAllow)
	if err != nil {
		b.logger.Error("querying magisk policies", "uid", uid, "error", err)
		return false
	}
	return found
}

// UIDShouldUmount implements [rootimpl.Backend]. The package list is
// re-read on each query: apps installed after boot get new uids.
func (b *Backend) UIDShouldUmount(uid int32) bool {
	if b.pool == nil {
		return false
	}
	list, err := packages.Load(b.packageListPath)
	if err != nil {
		b.logger.Error("loading package list", "error", err)
		return false
	}
	for _, name := range list.ForUID(uid) {
		found, err := b.pool.Exists(context.Background(),
			"SELECT 1 FROM denylist WHERE package_name = ?", name)
		if err != nil {
			b.logger.Error("querying magisk denylist", "package", name, "error", err)
			return false
		}
		if found {
			return true
		}
	}
	return false
}

// Close releases the policy database.
func (b *Backend) Close() error {
	if b.pool == nil {
		return nil
	}
	return b.pool.Close()
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}
