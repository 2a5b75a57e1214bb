// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package androidlog writes to the Android system log.
//
// logd accepts records as datagrams on /dev/socket/logdw. Each datagram
// is an 11-byte little-endian header followed by the record payload:
//
//	offset  size  field
//	0       1     log buffer id (0 = main)
//	1       2     thread id
//	3       4     realtime seconds
//	7       4     realtime nanoseconds
//	11      1     priority
//	12      n+1   tag, NUL-terminated
//	13+n    m+1   message, NUL-terminated
//
// [Sink] writes raw records: the daemon forwards log lines from
// injected processes through it unchanged. [Handler] adapts a Sink to
// log/slog so the daemon's own structured logs land in logcat.
package androidlog
