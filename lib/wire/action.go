// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import "fmt"

// Action is the first byte of every connection and selects the
// exchange that follows. The numeric values are shared with the
// in-process client library and must never be reordered.
type Action uint8

const (
	// PingHeartbeat is a liveness probe with no body in either
	// direction.
	PingHeartbeat Action = iota

	// RequestLogcatFd streams (level, tag, message) triples from the
	// client until it closes the connection. The daemon forwards each
	// triple to the system log and never responds.
	RequestLogcatFd

	// ReadNativeBridge returns the native bridge identifier captured at
	// startup.
	ReadNativeBridge

	// GetProcessFlags takes a uid and returns the process flag bitmask.
	GetProcessFlags

	// ReadModules returns the module count followed by each module's
	// name and library descriptor.
	ReadModules

	// RequestCompanionSocket takes a module index and either hands the
	// client's connection to that module's companion or writes a
	// single zero byte.
	RequestCompanionSocket

	// GetModuleDir takes a module index and returns a descriptor for
	// the module's directory.
	GetModuleDir
)

// Process flag bits returned by [GetProcessFlags].
const (
	ProcessGrantedRoot  uint32 = 1 << 0
	ProcessOnDenylist   uint32 = 1 << 1
	ProcessRootIsKSU    uint32 = 1 << 2
	ProcessRootIsMagisk uint32 = 1 << 3
)

// ParseAction validates a raw action byte.
func ParseAction(raw uint8) (Action, error) {
	action := Action(raw)
	if action > GetModuleDir {
		return 0, fmt.Errorf("%w: %d", ErrUnknownAction, raw)
	}
	return action, nil
}

// String returns the action's name for logging.
func (a Action) String() string {
	switch a {
	case PingHeartbeat:
		return "ping_heartbeat"
	case RequestLogcatFd:
		return "request_logcat_fd"
	case ReadNativeBridge:
		return "read_native_bridge"
	case GetProcessFlags:
		return "get_process_flags"
	case ReadModules:
		return "read_modules"
	case RequestCompanionSocket:
		return "request_companion_socket"
	case GetModuleDir:
		return "get_module_dir"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(a))
	}
}
