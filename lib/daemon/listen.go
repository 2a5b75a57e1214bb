// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"fmt"
	"log/slog"
	"net"
	"runtime"

	"github.com/opencontainers/selinux/go-selinux"

	"github.com/bureau-foundation/zygiskd/lib/arch"
)

// DefaultSocketContext is the SELinux context the daemon socket is
// created with.
const DefaultSocketContext = "u:r:zygote:s0"

// SocketName returns the abstract socket name for this build:
// "zygiskd32" or "zygiskd64" followed by magic.
func SocketName(magic string) string {
	return "zygiskd" + arch.Bits() + magic
}

// ListenConfig configures [Listen].
type ListenConfig struct {
	// Name is the abstract socket name, without the leading '@'.
	Name string

	// SocketContext is the SELinux label for the socket. Empty skips
	// labeling.
	SocketContext string

	Logger *slog.Logger
}

// Listen binds the daemon socket in the abstract namespace.
//
// The SELinux socket creation context is a per-thread attribute, so
// the label is set, the socket created, and the label cleared on one
// locked OS thread.
func Listen(config ListenConfig) (*net.UnixListener, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("daemon: socket name is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	labeled := false
	switch {
	case config.SocketContext == "":
	case !selinux.GetEnabled():
		logger.Info("selinux disabled, socket left unlabeled")
	default:
		if err := selinux.SetSocketLabel(config.SocketContext); err != nil {
			return nil, fmt.Errorf("setting socket creation context %s: %w", config.SocketContext, err)
		}
		labeled = true
	}

	listener, err := net.ListenUnix("unix", &net.UnixAddr{Name: "@" + config.Name, Net: "unix"})

	if labeled {
		if resetErr := selinux.SetSocketLabel(""); resetErr != nil {
			logger.Warn("clearing socket creation context", "error", resetErr)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("listening on @%s: %w", config.Name, err)
	}

	logger.Debug("daemon socket created", "name", config.Name, "context", config.SocketContext)
	return listener, nil
}
