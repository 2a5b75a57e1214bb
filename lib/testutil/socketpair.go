// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"net"
	"os"
	"testing"

	"golang.org/x/sys/unix"
)

// ConnPair returns both ends of a connected Unix stream socket pair.
// Both ends are closed when the test completes; closing them earlier
// is fine.
func ConnPair(t *testing.T) (*net.UnixConn, *net.UnixConn) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	left := fdConn(t, fds[0])
	right := fdConn(t, fds[1])
	t.Cleanup(func() {
		left.Close()
		right.Close()
	})
	return left, right
}

func fdConn(t *testing.T, fd int) *net.UnixConn {
	t.Helper()
	file := os.NewFile(uintptr(fd), "socketpair")
	defer file.Close()
	conn, err := net.FileConn(file)
	if err != nil {
		t.Fatalf("FileConn: %v", err)
	}
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		t.Fatalf("FileConn returned %T, want *net.UnixConn", conn)
	}
	return unixConn
}
