// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package module

import "fmt"

// Mode selects how library descriptors are produced.
type Mode int

const (
	// ModeSealed copies the library into a sealed memfd.
	ModeSealed Mode = iota

	// ModePlain opens the library file read-only.
	ModePlain
)

func (m Mode) String() string {
	switch m {
	case ModeSealed:
		return "sealed"
	case ModePlain:
		return "plain"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode maps a configuration value to a Mode. "auto" and the empty
// string select the build default.
func ParseMode(value string) (Mode, error) {
	switch value {
	case "", "auto":
		return DefaultMode, nil
	case "sealed":
		return ModeSealed, nil
	case "plain":
		return ModePlain, nil
	default:
		return 0, fmt.Errorf("unknown library mode %q (want auto, sealed, or plain)", value)
	}
}
