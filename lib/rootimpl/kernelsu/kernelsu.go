// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package kernelsu probes KernelSU through its prctl interface.
//
// KernelSU hooks prctl(2) and answers commands sent with the magic
// option 0xDEADBEEF. A kernel without KernelSU rejects the option and
// leaves the out-parameters untouched, so a zero version means absent.
// When KernelSU handles a command it writes the magic value back into
// the reply pointer, which distinguishes a "false" answer from a
// command the kernel never saw.
package kernelsu

import (
	"log/slog"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/zygiskd/lib/rootimpl"
)

const (
	option = 0xDEADBEEF

	cmdGetVersion      = 2
	cmdUIDGrantedRoot  = 12
	cmdUIDShouldUmount = 13

	// MinVersion is the oldest KernelSU release exposing the uid policy
	// commands.
	MinVersion = 10940

	// MaxVersion bounds plausible version codes. Anything above it is
	// reported as abnormal rather than trusted.
	MaxVersion = 20000
)

// Backend is the KernelSU [rootimpl.Backend].
type Backend struct {
	logger *slog.Logger

	// getVersion and queryUID wrap the prctl calls. queryUID returns the
	// answer and whether KernelSU acknowledged the command.
	getVersion func() int32
	queryUID   func(command uintptr, uid int32) (answer bool, acknowledged bool)
}

// New returns a backend that talks to the running kernel.
func New(logger *slog.Logger) *Backend {
	return &Backend{
		logger:     logger,
		getVersion: prctlVersion,
		queryUID:   prctlQueryUID,
	}
}

// Name implements [rootimpl.Backend].
func (b *Backend) Name() string { return "kernelsu" }

// Detect implements [rootimpl.Backend].
func (b *Backend) Detect() rootimpl.Status {
	version := b.getVersion()
	status := classifyVersion(version)
	if status != rootimpl.Absent {
		b.logger.Info("kernelsu detected", "version", version, "status", status)
	}
	return status
}

func classifyVersion(version int32) rootimpl.Status {
	switch {
	case version == 0:
		return rootimpl.Absent
	case version >= MinVersion && version <= MaxVersion:
		return rootimpl.Supported
	case version > 0 && version < MinVersion:
		return rootimpl.TooOld
	default:
		return rootimpl.Abnormal
	}
}

// UIDGrantedRoot implements [rootimpl.Backend].
func (b *Backend) UIDGrantedRoot(uid int32) bool {
	return b.query(cmdUIDGrantedRoot, "uid_granted_root", uid)
}

// UIDShouldUmount implements [rootimpl.Backend].
func (b *Backend) UIDShouldUmount(uid int32) bool {
	return b.query(cmdUIDShouldUmount, "uid_should_umount", uid)
}

func (b *Backend) query(command uintptr, name string, uid int32) bool {
	answer, acknowledged := b.queryUID(command, uid)
	if !acknowledged {
		b.logger.Warn("kernelsu did not acknowledge command", "command", name, "uid", uid)
	}
	return answer
}

func prctlVersion() int32 {
	var version int32
	unix.Syscall6(unix.SYS_PRCTL, option, cmdGetVersion,
		uintptr(unsafe.Pointer(&version)), 0, 0, 0)
	return version
}

func prctlQueryUID(command uintptr, uid int32) (bool, bool) {
	// KernelSU writes a C bool (one byte) into answer.
	var answer uint8
	var reply uint32
	unix.Syscall6(unix.SYS_PRCTL, option, command, uintptr(uid),
		uintptr(unsafe.Pointer(&answer)), uintptr(unsafe.Pointer(&reply)), 0)
	return answer != 0, reply == option
}
