// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for zygiskd:
//
//   - Fatal error reporting to stderr when the structured logger may
//     not be initialized yet.
//   - Tying the daemon's lifetime to the process that spawned it.
package process
