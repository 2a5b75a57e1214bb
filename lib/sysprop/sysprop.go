// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sysprop reads Android system properties.
//
// Properties are read through the getprop binary rather than the
// bionic property area, which is only reachable through libc. getprop
// is resolved on PATH first, then at /system/bin/getprop, since init
// may start the daemon with a minimal environment.
package sysprop

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

const systemGetprop = "/system/bin/getprop"

// Reader reads system properties. An unset property reads as "".
type Reader interface {
	Get(ctx context.Context, name string) (string, error)
}

// Getprop reads properties by running getprop.
type Getprop struct {
	// Path overrides binary resolution when non-empty.
	Path string
}

// Get implements [Reader].
func (g Getprop) Get(ctx context.Context, name string) (string, error) {
	binaryPath, err := g.binary()
	if err != nil {
		return "", err
	}

	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, binaryPath, name)
	command.Stdout = &stdout
	command.Stderr = &stderr
	if err := command.Run(); err != nil {
		return "", fmt.Errorf("getprop %s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimRight(stdout.String(), "\r\n"), nil
}

func (g Getprop) binary() (string, error) {
	if g.Path != "" {
		return g.Path, nil
	}
	if path, err := exec.LookPath("getprop"); err == nil {
		return path, nil
	}
	if _, err := os.Stat(systemGetprop); err == nil {
		return systemGetprop, nil
	}
	return "", fmt.Errorf("getprop not found on PATH or at %s", systemGetprop)
}

// Static serves properties from a map.
type Static map[string]string

// Get implements [Reader].
func (s Static) Get(ctx context.Context, name string) (string, error) {
	return s[name], nil
}

// GetDefault reads name and substitutes fallback when it is unset.
func GetDefault(ctx context.Context, reader Reader, name, fallback string) (string, error) {
	value, err := reader.Get(ctx, name)
	if err != nil {
		return "", err
	}
	if value == "" {
		return fallback, nil
	}
	return value, nil
}
