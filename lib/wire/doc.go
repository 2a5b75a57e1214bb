// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire implements the byte layout of the zygiskd socket
// protocol and the descriptor-passing discipline layered over it.
//
// Every connection opens with one action byte (see [Action]). Integers
// are fixed-width and native-endian, because both peers always run on
// the same device and the same bitness. A "usize" is the daemon's own
// word size (4 bytes on 32-bit builds, 8 bytes on 64-bit builds).
// Strings are a usize length followed by the raw bytes, with no
// terminator.
//
// Descriptors travel as a single SCM_RIGHTS control message carrying
// exactly one descriptor, attached to a single zero data byte. Stream
// sockets cannot carry ancillary data without at least one byte of
// payload, so the zero byte is part of the protocol and the receiver
// consumes it.
//
// [Conn] never buffers reads: a buffered reader would swallow the data
// byte that carries a descriptor and leave the control message
// unreadable.
package wire
