// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"fmt"
	"os"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// SetParentDeathSignal asks the kernel to deliver signal to this
// process when its parent exits. The daemon calls it first thing so
// that it dies with the zygisk loader that started it; a stale daemon
// would keep serving a socket name the next loader instance also
// wants.
//
// The setting belongs to the calling OS thread; call it from main
// before any goroutines that lock threads are started.
//
// If the parent already died before the call took effect, the process
// has been reparented and the signal will never arrive, so the race is
// checked and reported as an error.
func SetParentDeathSignal(signal syscall.Signal) error {
	parent := os.Getppid()
	if err := unix.Prctl(unix.PR_SET_PDEATHSIG, uintptr(signal), 0, 0, 0); err != nil {
		return fmt.Errorf("prctl PR_SET_PDEATHSIG: %w", err)
	}
	if os.Getppid() != parent {
		return fmt.Errorf("parent process %d exited before the death signal was armed", parent)
	}
	return nil
}

// ParentDeathSignal returns the signal armed on the calling OS thread,
// or 0.
func ParentDeathSignal() (syscall.Signal, error) {
	var signal int32
	if err := unix.Prctl(unix.PR_GET_PDEATHSIG, uintptr(unsafe.Pointer(&signal)), 0, 0, 0); err != nil {
		return 0, fmt.Errorf("prctl PR_GET_PDEATHSIG: %w", err)
	}
	return syscall.Signal(signal), nil
}
