// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package magic loads the token that namespaces the daemon socket.
//
// The loader injected into the zygote and the daemon must agree on the
// socket name. Each build pair shares a magic token; an old loader
// talking to a new daemon simply fails to connect instead of speaking
// an incompatible protocol. The installer writes the token to a file;
// binaries also carry a build-time default set with
//
//	-ldflags "-X github.com/bureau-foundation/zygiskd/lib/magic.Default=..."
package magic

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
)

// DefaultPath is where the installer writes the token.
const DefaultPath = "/system/zygisk_magic"

// maxLength bounds the token. Abstract socket names are limited to 107
// bytes and the prefix takes nine.
const maxLength = 64

// Default is the build-time token, used when the token file is absent.
var Default = "dev"

// Load reads the token from path. A missing or empty file falls back
// to Default with a warning.
func Load(path string, logger *slog.Logger) (string, error) {
	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("magic file missing, using build default", "path", path, "magic", Default)
		return Default, Validate(Default)
	}
	if err != nil {
		return "", fmt.Errorf("reading magic: %w", err)
	}
	token := strings.TrimSpace(string(content))
	if token == "" {
		logger.Warn("magic file empty, using build default", "path", path, "magic", Default)
		token = Default
	}
	if err := Validate(token); err != nil {
		return "", err
	}
	return token, nil
}

// Validate checks that token is non-empty, short enough for a socket
// name, and made only of ASCII letters, digits, '-' and '_'.
func Validate(token string) error {
	if token == "" {
		return fmt.Errorf("magic token is empty")
	}
	if len(token) > maxLength {
		return fmt.Errorf("magic token is %d bytes, maximum %d", len(token), maxLength)
	}
	for _, character := range token {
		switch {
		case character >= 'a' && character <= 'z':
		case character >= 'A' && character <= 'Z':
		case character >= '0' && character <= '9':
		case character == '-' || character == '_':
		default:
			return fmt.Errorf("magic token contains %q", character)
		}
	}
	return nil
}
