// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for zygiskd.
//
// init starts the daemon with no arguments, so configuration is
// optional: [Load] reads the file named by ZYGISKD_CONFIG when it is
// set and otherwise returns [Default], which describes a stock rooted
// device. A --config flag names a file explicitly (via [LoadFile]).
// Values in the file are merged over the defaults; keys the file omits
// keep their default.
//
// Variable expansion is performed on path fields after loading:
// ${ZYGISKD_ADB} (the paths.adb value), ${VAR}, and ${VAR:-default}
// patterns are expanded.
//
// This package depends on no other zygiskd packages.
package config
