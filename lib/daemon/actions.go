// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bureau-foundation/zygiskd/lib/androidlog"
	"github.com/bureau-foundation/zygiskd/lib/rootimpl"
	"github.com/bureau-foundation/zygiskd/lib/wire"
)

var (
	// ErrIndexOutOfRange is returned for a module index at or past
	// the module count.
	ErrIndexOutOfRange = errors.New("daemon: module index out of range")

	// ErrUnsupportedProvider is returned by GetProcessFlags when no
	// single supported root provider is active.
	ErrUnsupportedProvider = errors.New("daemon: no supported root provider")
)

// forwardLogs relays (level, tag, message) triples until the client
// closes. A clean close before a level byte ends the stream normally.
func (s *Server) forwardLogs(conn *wire.Conn) error {
	for {
		level, err := conn.ReadUint8()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		tag, err := conn.ReadString()
		if err != nil {
			return fmt.Errorf("reading log tag: %w", err)
		}
		message, err := conn.ReadString()
		if err != nil {
			return fmt.Errorf("reading log message: %w", err)
		}
		if err := s.writeLog(androidlog.Priority(level), tag, message); err != nil {
			return err
		}
	}
}

func (s *Server) writeLog(priority androidlog.Priority, tag, message string) error {
	if s.state.LogSink != nil {
		return s.state.LogSink.Write(priority, tag, message)
	}
	s.logger.Info(message, "tag", tag, "priority", int(priority))
	return nil
}

func (s *Server) processFlags(conn *wire.Conn) error {
	raw, err := conn.ReadUint32()
	if err != nil {
		return fmt.Errorf("reading uid: %w", err)
	}
	uid := int32(raw)

	root := s.state.Root
	if root == nil {
		return ErrUnsupportedProvider
	}
	if !root.Supported() {
		return fmt.Errorf("%w (provider %s)", ErrUnsupportedProvider, root.Provider())
	}

	var flags uint32
	if root.UIDGrantedRoot(uid) {
		flags |= wire.ProcessGrantedRoot
	}
	if root.UIDShouldUmount(uid) {
		flags |= wire.ProcessOnDenylist
	}
	switch root.Provider() {
	case rootimpl.KernelSU:
		flags |= wire.ProcessRootIsKSU
	case rootimpl.Magisk:
		flags |= wire.ProcessRootIsMagisk
	}
	s.logger.Debug("process flags", "uid", uid, "flags", flags)
	return conn.WriteUint32(flags)
}

func (s *Server) readModules(conn *wire.Conn) error {
	modules := s.state.Modules
	if err := conn.WriteUsize(uint64(len(modules))); err != nil {
		return err
	}
	for _, module := range modules {
		if err := conn.WriteString(module.Name); err != nil {
			return err
		}
		if err := conn.SendFile(module.Library); err != nil {
			return fmt.Errorf("sending library of %s: %w", module.Name, err)
		}
	}
	return nil
}

func (s *Server) readIndex(conn *wire.Conn) (int, error) {
	index, err := conn.ReadUsize()
	if err != nil {
		return 0, fmt.Errorf("reading module index: %w", err)
	}
	if index >= uint64(len(s.state.Modules)) {
		return 0, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(s.state.Modules))
	}
	return int(index), nil
}

// requestCompanion hands the client socket to the module's companion.
// On success the companion answers the client; this side only closes
// its copy.
func (s *Server) requestCompanion(conn *wire.Conn) error {
	index, err := s.readIndex(conn)
	if err != nil {
		return err
	}
	if s.state.Companions == nil {
		return conn.WriteUint8(0)
	}
	if err := s.state.Companions.Connect(index, conn.UnixConn()); err != nil {
		s.logger.Debug("companion unavailable", "module", s.state.Modules[index].Name, "error", err)
		return conn.WriteUint8(0)
	}
	return nil
}

func (s *Server) moduleDir(conn *wire.Conn) error {
	index, err := s.readIndex(conn)
	if err != nil {
		return err
	}
	dir, err := os.Open(s.state.Modules[index].Dir)
	if err != nil {
		return fmt.Errorf("opening module directory: %w", err)
	}
	defer dir.Close()
	return conn.SendFile(dir)
}
