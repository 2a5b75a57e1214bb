// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !debug

package module

// DefaultMode is the library mode selected by "auto".
const DefaultMode = ModeSealed
