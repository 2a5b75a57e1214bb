// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"os"
	"sync/atomic"
)

var uniqueCounter atomic.Uint64

// UniqueID returns a string of the form "prefix-PID-N" where N is a
// monotonically increasing integer. The pid keeps abstract socket names
// distinct across test binaries running concurrently on one machine.
//
//	name := testutil.UniqueID("zygiskd-test") // "zygiskd-test-4242-1", ...
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, os.Getpid(), uniqueCounter.Add(1))
}
