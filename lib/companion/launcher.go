// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package companion

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
)

// Launcher starts the companion process for a module. endpoint is the
// companion's end of the socket pair; Launch must not retain it, and
// the caller closes its copy once Launch returns. A launch failure is
// reported synchronously.
type Launcher interface {
	Launch(module string, endpoint *os.File) error
}

// ExecLauncher re-executes a zygiskd binary in companion mode.
type ExecLauncher struct {
	// Executable is the binary to run. Typically os.Executable().
	Executable string

	// NiceName prefixes argv[0] as "<NiceName>-<module>", which is
	// what ps shows. Defaults to the base name of Executable.
	NiceName string

	// Env is appended to the daemon's environment.
	Env []string

	Logger *slog.Logger
}

// Launch implements [Launcher]. The child gets endpoint as fd 3, its
// own session, and no other inherited descriptors. It is reaped in the
// background; a non-zero exit is logged.
func (l *ExecLauncher) Launch(module string, endpoint *os.File) error {
	niceName := l.NiceName
	if niceName == "" {
		niceName = filepath.Base(l.Executable)
	}

	command := &exec.Cmd{
		Path:        l.Executable,
		Args:        []string{niceName + "-" + module, "companion", "3"},
		Env:         append(os.Environ(), l.Env...),
		ExtraFiles:  []*os.File{endpoint}, // becomes fd 3 in child
		SysProcAttr: &syscall.SysProcAttr{Setsid: true},
	}
	if err := command.Start(); err != nil {
		return fmt.Errorf("starting companion for %s: %w", module, err)
	}

	logger := l.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	pid := command.Process.Pid
	logger.Debug("companion started", "module", module, "pid", pid)

	go func() {
		waitError := command.Wait()
		if waitError == nil {
			logger.Debug("companion exited", "module", module, "pid", pid)
			return
		}
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(waitError, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		logger.Warn("companion exited abnormally",
			"module", module,
			"pid", pid,
			"exit_code", exitCode,
			"error", waitError,
		)
	}()
	return nil
}
