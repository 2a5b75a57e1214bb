// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package statefile records what a running daemon is serving.
//
// Once its socket is listening, the daemon writes a CBOR [Status] to
// <run>/zygiskd<bits>.status: its pid, socket name, root provider, and
// the digest of every module library it hands out. "zygiskd status"
// reads it back. The file is replaced atomically (temporary file,
// fsync, rename into place, fsync of the parent directory) so a reader
// never sees a partial state.
package statefile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/zygiskd/lib/binhash"
	"github.com/bureau-foundation/zygiskd/lib/codec"
)

// Status is the daemon state written after startup.
type Status struct {
	PID          int            `cbor:"pid"`
	Version      string         `cbor:"version"`
	Binary       binhash.Digest `cbor:"binary"`
	Arch         string         `cbor:"arch"`
	Provider     string         `cbor:"provider"`
	Socket       string         `cbor:"socket"`
	NativeBridge string         `cbor:"native_bridge"`
	LibraryMode  string         `cbor:"library_mode"`
	Modules      []ModuleStatus `cbor:"modules"`
	Started      time.Time      `cbor:"started"`
}

// ModuleStatus identifies one loaded module.
type ModuleStatus struct {
	Name   string         `cbor:"name"`
	Digest binhash.Digest `cbor:"digest"`
}

// Path returns the status file path for a daemon of the given bitness
// ("32" or "64").
func Path(runDirectory, bits string) string {
	return filepath.Join(runDirectory, "zygiskd"+bits+".status")
}

// Write atomically writes status to path, creating the parent
// directory if needed.
func Write(path string, status Status) error {
	data, err := codec.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshaling status: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating status directory: %w", err)
	}

	temporaryPath := path + ".tmp"

	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("creating temporary status file: %w", err)
	}

	// Write, sync, close, in that order. On any failure the temporary
	// file is removed.
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary status file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary status file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary status file: %w", err)
	}

	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming status file into place: %w", err)
	}

	parentDirectory, err := os.Open(filepath.Dir(path))
	if err == nil {
		parentDirectory.Sync()
		parentDirectory.Close()
	}

	return nil
}

// Read reads and decodes a status file. When the file does not exist
// the error wraps os.ErrNotExist.
func Read(path string) (Status, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Status{}, err
	}

	var status Status
	if err := codec.Unmarshal(data, &status); err != nil {
		return Status{}, fmt.Errorf("parsing status file %s: %w", path, err)
	}
	return status, nil
}

// Remove deletes a status file. Idempotent.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing status file: %w", err)
	}
	return nil
}

// Alive reports whether the process that wrote the status still
// exists. A file left behind by a killed daemon reports false.
func (s Status) Alive() bool {
	if s.PID <= 0 {
		return false
	}
	err := unix.Kill(s.PID, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
