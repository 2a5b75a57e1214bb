// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"github.com/bureau-foundation/zygiskd/lib/androidlog"
	"github.com/bureau-foundation/zygiskd/lib/module"
	"github.com/bureau-foundation/zygiskd/lib/rootimpl"
	"github.com/bureau-foundation/zygiskd/lib/wire"
)

// LogSink receives log records forwarded by injected processes.
// *androidlog.Sink is the production implementation.
type LogSink interface {
	Write(priority androidlog.Priority, tag, message string) error
}

// Companions hands a client connection to a module's companion.
// *companion.Manager is the production implementation.
type Companions interface {
	Connect(index int, client wire.RawConner) error
}

// Context is the state every connection handler reads. It is built
// once at startup and never modified.
type Context struct {
	// NativeBridge is the native bridge library name, "0" when none.
	NativeBridge string

	// Modules is the loaded module list. Indices are wire indices.
	Modules []*module.Module

	Root *rootimpl.Root

	Companions Companions

	// LogSink receives RequestLogcatFd records. When nil they are
	// written to the server's logger.
	LogSink LogSink
}
