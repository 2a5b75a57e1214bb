// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package companion

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/bureau-foundation/zygiskd/lib/module"
	"github.com/bureau-foundation/zygiskd/lib/wire"
)

// Host is the companion side of the handshake.
type Host struct {
	// ModulesDir is the modules root the module name is resolved in.
	ModulesDir string

	// Arch selects the companion program, zygisk/<Arch>-companion.
	Arch string

	// NiceName is argv[0] for started companion programs. Defaults to
	// the host's own argv[0].
	NiceName string

	Logger *slog.Logger
}

// Run answers the handshake on endpoint and serves forwarded clients
// until the daemon closes its end. endpoint is consumed. A module
// without a companion program is not an error: the host answers 0 and
// returns nil.
func (h *Host) Run(endpoint *os.File) error {
	unixConn, err := wire.FileConn(endpoint)
	if err != nil {
		return err
	}
	conn := wire.NewConn(unixConn)
	defer conn.Close()

	logger := h.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	name, err := conn.ReadString()
	if err != nil {
		return fmt.Errorf("reading module name: %w", err)
	}
	if name == "" || name != filepath.Base(name) || name == ".." {
		return fmt.Errorf("%w: module name %q", ErrProtocol, name)
	}
	library, err := conn.RecvFile("library:" + name)
	if err != nil {
		return fmt.Errorf("receiving library: %w", err)
	}
	defer library.Close()

	logger = logger.With("module", name)
	program := module.CompanionPath(filepath.Join(h.ModulesDir, name), h.Arch)
	if !executable(program) {
		logger.Debug("module has no companion program", "path", program)
		return conn.WriteUint8(statusNone)
	}
	if err := conn.WriteUint8(statusServing); err != nil {
		return fmt.Errorf("writing status: %w", err)
	}

	niceName := h.NiceName
	if niceName == "" {
		niceName = os.Args[0]
	}

	for {
		client, err := conn.RecvFile("client")
		if errors.Is(err, io.EOF) {
			logger.Debug("daemon closed companion socket")
			return nil
		}
		if err != nil {
			return fmt.Errorf("receiving client: %w", err)
		}
		if err := serve(program, niceName, client, library, logger); err != nil {
			logger.Error("starting companion program", "path", program, "error", err)
		}
	}
}

// serve starts program with client as fd 3 and library as fd 4. The
// client is closed in this process either way.
func serve(program, niceName string, client, library *os.File, logger *slog.Logger) error {
	defer client.Close()

	command := &exec.Cmd{
		Path:       program,
		Args:       []string{niceName},
		ExtraFiles: []*os.File{client, library}, // fds 3 and 4 in child
		Stderr:     os.Stderr,
	}
	if err := command.Start(); err != nil {
		return err
	}
	pid := command.Process.Pid
	logger.Debug("companion program started", "pid", pid)

	go func() {
		if err := command.Wait(); err != nil {
			logger.Warn("companion program exited", "pid", pid, "error", err)
		}
	}()
	return nil
}

func executable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode().Perm()&0111 != 0
}
