// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/bureau-foundation/zygiskd/lib/arch"
	"github.com/bureau-foundation/zygiskd/lib/codec"
	"github.com/bureau-foundation/zygiskd/lib/config"
	"github.com/bureau-foundation/zygiskd/lib/statefile"
)

// runStatus prints the status file of the daemon matching this binary's
// width.
func runStatus(cfg *config.Config, out io.Writer, diagnostic bool) error {
	path := statefile.Path(cfg.Paths.Run, arch.Bits())

	if diagnostic {
		data, err := os.ReadFile(path)
		if err != nil {
			return statusReadError(path, err)
		}
		notation, err := codec.Diagnose(data)
		if err != nil {
			return fmt.Errorf("decoding %s: %w", path, err)
		}
		_, err = fmt.Fprintln(out, notation)
		return err
	}

	status, err := statefile.Read(path)
	if err != nil {
		return statusReadError(path, err)
	}
	return printStatus(out, status, time.Now())
}

func statusReadError(path string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("no daemon status at %s (is zygiskd%s running?)", path, arch.Bits())
	}
	return err
}

func printStatus(out io.Writer, status statefile.Status, now time.Time) error {
	state := "running"
	if !status.Alive() {
		state = "not running (stale status file)"
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "state:\t%s\n", state)
	fmt.Fprintf(writer, "pid:\t%d\n", status.PID)
	fmt.Fprintf(writer, "version:\t%s\n", status.Version)
	fmt.Fprintf(writer, "binary:\t%s\n", status.Binary)
	fmt.Fprintf(writer, "arch:\t%s\n", status.Arch)
	fmt.Fprintf(writer, "provider:\t%s\n", status.Provider)
	fmt.Fprintf(writer, "socket:\t@%s\n", status.Socket)
	fmt.Fprintf(writer, "native bridge:\t%s\n", status.NativeBridge)
	fmt.Fprintf(writer, "library mode:\t%s\n", status.LibraryMode)
	fmt.Fprintf(writer, "started:\t%s (%s ago)\n",
		status.Started.Format(time.RFC3339), now.Sub(status.Started).Truncate(time.Second))
	fmt.Fprintf(writer, "modules:\t%d\n", len(status.Modules))
	for index, mod := range status.Modules {
		fmt.Fprintf(writer, "  [%d] %s\t%s\n", index, mod.Name, mod.Digest)
	}
	return writer.Flush()
}
