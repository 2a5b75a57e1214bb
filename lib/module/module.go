// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package module

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/zygiskd/lib/binhash"
)

// DefaultDir is the modules root on a rooted device.
const DefaultDir = "/data/adb/modules"

// Module is one loaded Zygisk module.
type Module struct {
	// Name is the module's directory name.
	Name string

	// Dir is the module's directory.
	Dir string

	// Library is the descriptor sent to the zygote. It is shared by
	// every client and must not be read through its file offset.
	Library *os.File

	// Digest is the BLAKE3 digest of the library bytes as loaded.
	Digest binhash.Digest
}

// Close releases the library descriptor.
func (m *Module) Close() error {
	return m.Library.Close()
}

// Options configures [Load].
type Options struct {
	// Dir is the modules root. Defaults to DefaultDir.
	Dir string

	// Arch is the ABI directory name, e.g. "arm64-v8a".
	Arch string

	Mode Mode

	Logger *slog.Logger
}

// LibraryPath returns the path of a module's Zygisk library.
func LibraryPath(moduleDir, arch string) string {
	return filepath.Join(moduleDir, "zygisk", arch+".so")
}

// CompanionPath returns the path of a module's companion program.
func CompanionPath(moduleDir, arch string) string {
	return filepath.Join(moduleDir, "zygisk", arch+"-companion")
}

// Load enumerates the modules root in name order. Modules without a
// library for arch, disabled modules, and modules whose library cannot
// be prepared are skipped. A missing or unreadable modules root yields
// an empty list.
func Load(options Options) ([]*Module, error) {
	if options.Arch == "" {
		return nil, fmt.Errorf("module: Arch is required")
	}
	dir := options.Dir
	if dir == "" {
		dir = DefaultDir
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn("reading modules directory", "dir", dir, "error", err)
		return nil, nil
	}

	var modules []*Module
	for _, entry := range entries {
		name := entry.Name()
		moduleDir := filepath.Join(dir, name)
		libraryPath := LibraryPath(moduleDir, options.Arch)

		if !exists(libraryPath) {
			logger.Debug("module has no library for arch", "module", name, "arch", options.Arch)
			continue
		}
		if exists(filepath.Join(moduleDir, "disable")) {
			logger.Debug("module disabled", "module", name)
			continue
		}

		logger.Info("loading module", "module", name, "mode", options.Mode)
		library, digest, err := openLibrary(libraryPath, options.Mode)
		if err != nil {
			logger.Warn("preparing module library", "module", name, "error", err)
			continue
		}
		logger.Debug("module loaded", "module", name, "digest", digest)

		modules = append(modules, &Module{
			Name:    name,
			Dir:     moduleDir,
			Library: library,
			Digest:  digest,
		})
	}
	return modules, nil
}

// CloseAll closes every module's library descriptor.
func CloseAll(modules []*Module) error {
	var errs []error
	for _, module := range modules {
		if err := module.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", module.Name, err))
		}
	}
	return errors.Join(errs...)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func openLibrary(path string, mode Mode) (*os.File, binhash.Digest, error) {
	switch mode {
	case ModeSealed:
		return sealedLibrary(path)
	case ModePlain:
		return plainLibrary(path)
	default:
		return nil, binhash.Digest{}, fmt.Errorf("unknown library mode %s", mode)
	}
}
