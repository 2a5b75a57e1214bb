// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/bureau-foundation/zygiskd/lib/androidlog"
	"github.com/bureau-foundation/zygiskd/lib/arch"
	"github.com/bureau-foundation/zygiskd/lib/config"
)

// handlerFormat resolves the "auto" log format. A terminal gets text,
// a device with logd gets logcat, anything else gets JSON.
func handlerFormat(format string, terminal, logdAvailable bool) string {
	if format != "auto" {
		return format
	}
	switch {
	case terminal:
		return "text"
	case logdAvailable:
		return "logcat"
	default:
		return "json"
	}
}

// newLogger builds the process logger from the log config. The
// returned closer releases the logd connection, if any.
func newLogger(cfg config.LogConfig, level slog.Level, stderr *os.File) (*slog.Logger, io.Closer, error) {
	_, statErr := os.Stat(cfg.Socket)
	format := handlerFormat(cfg.Format, term.IsTerminal(int(stderr.Fd())), statErr == nil)

	options := &slog.HandlerOptions{Level: level}
	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(stderr, options)), nopCloser{}, nil
	case "json":
		return slog.New(slog.NewJSONHandler(stderr, options)), nopCloser{}, nil
	case "logcat":
		sink, err := androidlog.Dial(cfg.Socket)
		if err != nil {
			return nil, nil, err
		}
		return slog.New(androidlog.NewHandler(sink, logTag(), level)), sink, nil
	default:
		return nil, nil, fmt.Errorf("unknown log format %q", format)
	}
}

func logTag() string {
	return "zygiskd" + arch.Bits()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
