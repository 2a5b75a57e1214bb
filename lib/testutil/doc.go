// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for zygiskd packages.
//
// [SocketDir] creates a short temporary directory in /tmp for Unix
// domain sockets, whose paths are limited to 108 bytes (sun_path in
// sockaddr_un). Deep t.TempDir() paths can exceed that limit.
//
// [ConnPair] returns both ends of a connected Unix stream socket pair,
// the transport every protocol test drives.
//
// [RequireReceive] encapsulates the timeout safety valve pattern
// (select with time.After fallback) so that individual tests do not
// need direct time.After calls.
//
// [UniqueID] generates monotonically increasing identifiers for test
// disambiguation, used for abstract socket names that must not collide
// between parallel tests.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
