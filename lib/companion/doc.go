// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package companion runs module companion processes: the root-side
// helpers a module uses from inside an app process that has no
// privileges of its own.
//
// The daemon side is [Manager]. Each module has at most one live
// companion, started on the first RequestCompanionSocket for that module
// and replaced only after it dies. A companion is this same binary run
// as "zygiskd companion 3" with one end of a socket pair as fd 3. The
// handshake on that socket is:
//
//	daemon -> companion  module name (string)
//	daemon -> companion  library descriptor
//	companion -> daemon  status byte: 1 serving, 0 no companion
//
// After status 1 the daemon forwards each requesting client's socket
// over the pair, and the companion owns it from then on.
//
// The companion side is [Host]: it answers the handshake and starts the
// module's companion program once per forwarded client.
package companion
