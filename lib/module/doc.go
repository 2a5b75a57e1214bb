// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package module enumerates installed Zygisk modules and prepares the
// library descriptor each one hands to the zygote.
//
// A module is a directory under the modules root (normally
// /data/adb/modules) containing zygisk/<abi>.so. A file named "disable"
// in the module directory turns it off. Modules are loaded once at
// startup; the resulting slice is immutable and its indices are the
// module indices used on the wire.
//
// In [ModeSealed] the library is copied into an anonymous memfd which
// is then sealed against writes, resizing, and further sealing, so a
// module update on disk cannot alter code already handed to running
// processes. [ModePlain] passes a read-only descriptor on the file
// itself, which keeps the on-disk path visible to debuggers. Release
// builds default to sealed; builds with the "debug" tag default to
// plain.
package module
