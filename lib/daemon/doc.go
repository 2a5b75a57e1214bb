// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package daemon serves the zygiskd socket.
//
// The socket lives in the abstract namespace under a name that embeds
// the daemon's bitness and the build's magic token. It is created under
// the zygote's SELinux socket context so that only zygote-forked
// processes can connect.
//
// Every connection carries exactly one action (see package wire). The
// [Server] runs one goroutine per connection with no limit and no
// timeouts: an injected process may hold its logcat connection open
// for its whole lifetime. A failing connection is logged and closed
// without affecting any other.
package daemon
