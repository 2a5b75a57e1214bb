// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package arch maps the device's primary ABI to the module library
// directory for this daemon's word size.
//
// A device runs a 32-bit and a 64-bit daemon side by side, one per
// zygote. Both read the same ro.product.cpu.abi; each picks the ABI
// matching its own pointer width.
package arch

import (
	"context"
	"fmt"
	"math/bits"
	"strings"

	"github.com/bureau-foundation/zygiskd/lib/sysprop"
)

// Property names the device's primary ABI.
const Property = "ro.product.cpu.abi"

// Is64Bit reports whether this binary was built for a 64-bit target.
const Is64Bit = bits.UintSize == 64

// Bits is "32" or "64", used in socket and log tag names.
func Bits() string {
	if Is64Bit {
		return "64"
	}
	return "32"
}

// Resolve maps a system ABI string to the module library ABI for a
// daemon of the given width.
func Resolve(systemABI string, is64Bit bool) (string, error) {
	switch {
	case strings.Contains(systemABI, "arm"):
		if is64Bit {
			return "arm64-v8a", nil
		}
		return "armeabi-v7a", nil
	case strings.Contains(systemABI, "x86"):
		if is64Bit {
			return "x86_64", nil
		}
		return "x86", nil
	default:
		return "", fmt.Errorf("unsupported system architecture %q", systemABI)
	}
}

// Detect reads the primary ABI property and resolves it for this
// binary.
func Detect(ctx context.Context, reader sysprop.Reader) (string, error) {
	systemABI, err := reader.Get(ctx, Property)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", Property, err)
	}
	return Resolve(systemABI, Is64Bit)
}
