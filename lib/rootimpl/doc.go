// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package rootimpl identifies the root provider active on the device
// and answers per-uid policy questions against it.
//
// Two backends can grant root: KernelSU (a kernel patch probed through
// prctl) and Magisk (a userspace daemon). [Setup] probes each backend
// exactly once at daemon startup and classifies the pair of results
// into a single [Provider]. The result is an immutable [Root] value
// that the daemon passes to every connection handler; it is never
// recomputed and never written after Setup returns.
//
// Policy questions ([Root.UIDGrantedRoot], [Root.UIDShouldUmount]) only
// have an answer when exactly one supported backend is active. Callers
// check [Root.Supported] first: asking a policy question of an
// ambiguous or unsupported provider is a programming error and panics.
package rootimpl
