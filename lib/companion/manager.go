// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package companion

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/zygiskd/lib/module"
	"github.com/bureau-foundation/zygiskd/lib/wire"
)

var (
	// ErrUnavailable is wrapped by every [Manager.Connect] failure. The
	// client is answered with a zero byte.
	ErrUnavailable = errors.New("companion: unavailable")

	// ErrProtocol marks a companion that answered the handshake with
	// something other than 0 or 1.
	ErrProtocol = errors.New("companion: protocol violation")
)

const (
	statusNone    = 0
	statusServing = 1
)

// Manager tracks one companion connection per module. Each module has
// its own lock, so a slow spawn for one module never blocks requests
// for another.
type Manager struct {
	modules  []*module.Module
	launcher Launcher
	logger   *slog.Logger
	slots    []slot
}

type slot struct {
	mutex sync.Mutex
	conn  *wire.Conn
}

// NewManager returns a manager for modules. The slice must not change
// afterwards: slot indices are module indices.
func NewManager(modules []*module.Module, launcher Launcher, logger *slog.Logger) *Manager {
	return &Manager{
		modules:  modules,
		launcher: launcher,
		logger:   logger,
		slots:    make([]slot, len(modules)),
	}
}

// Connect hands client to the companion of the module at index,
// starting the companion first if none is alive. On success the
// companion owns the client from then on and the caller should close
// its own copy. Any error wraps ErrUnavailable.
//
// index must be in range; the dispatcher checks it.
func (m *Manager) Connect(index int, client wire.RawConner) error {
	mod := m.modules[index]
	slot := &m.slots[index]

	slot.mutex.Lock()
	defer slot.mutex.Unlock()

	if slot.conn != nil && !alive(slot.conn) {
		m.logger.Error("companion crashed", "module", mod.Name)
		slot.conn.Close()
		slot.conn = nil
	}

	if slot.conn == nil {
		conn, err := m.spawn(mod)
		if err != nil {
			m.logger.Warn("failed to spawn companion", "module", mod.Name, "error", err)
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		if conn == nil {
			m.logger.Debug("module has no companion", "module", mod.Name)
			return fmt.Errorf("%w: module %s has no companion", ErrUnavailable, mod.Name)
		}
		m.logger.Debug("companion spawned", "module", mod.Name)
		slot.conn = conn
	}

	if err := slot.conn.SendFile(client); err != nil {
		m.logger.Error("companion socket missing", "module", mod.Name, "error", err)
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// spawn runs the handshake with a fresh companion. It returns a nil
// connection for a module without a companion program.
func (m *Manager) spawn(mod *module.Module) (*wire.Conn, error) {
	daemonEnd, companionEnd, err := wire.SocketPair()
	if err != nil {
		return nil, err
	}

	launchErr := m.launcher.Launch(mod.Name, companionEnd)
	// The child has its own copy. Keeping ours would hide the child's
	// exit from the status read below.
	companionEnd.Close()
	if launchErr != nil {
		daemonEnd.Close()
		return nil, launchErr
	}

	unixConn, err := wire.FileConn(daemonEnd)
	if err != nil {
		return nil, err
	}
	conn := wire.NewConn(unixConn)

	status, err := handshake(conn, mod)
	if err != nil {
		conn.Close()
		return nil, err
	}
	switch status {
	case statusServing:
		return conn, nil
	case statusNone:
		conn.Close()
		return nil, nil
	default:
		conn.Close()
		return nil, fmt.Errorf("%w: status byte %d", ErrProtocol, status)
	}
}

func handshake(conn *wire.Conn, mod *module.Module) (uint8, error) {
	if err := conn.WriteString(mod.Name); err != nil {
		return 0, fmt.Errorf("sending module name: %w", err)
	}
	if err := conn.SendFile(mod.Library); err != nil {
		return 0, fmt.Errorf("sending library: %w", err)
	}
	status, err := conn.ReadUint8()
	if err != nil {
		return 0, fmt.Errorf("reading companion status: %w", err)
	}
	return status, nil
}

// alive polls conn without waiting. Any returned event (hangup, error)
// means the companion is gone; a live idle companion never writes.
func alive(conn *wire.Conn) bool {
	raw, err := conn.UnixConn().SyscallConn()
	if err != nil {
		return false
	}
	var revents int16
	var pollErr error
	controlErr := raw.Control(func(fd uintptr) {
		fds := []unix.PollFd{{Fd: int32(fd)}}
		for {
			_, pollErr = unix.Poll(fds, 0)
			if pollErr != unix.EINTR {
				break
			}
		}
		revents = fds[0].Revents
	})
	if controlErr != nil || pollErr != nil {
		return false
	}
	return revents == 0
}

// Close closes every cached companion connection. Companions see EOF
// and exit.
func (m *Manager) Close() error {
	var errs []error
	for index := range m.slots {
		slot := &m.slots[index]
		slot.mutex.Lock()
		if slot.conn != nil {
			if err := slot.conn.Close(); err != nil {
				errs = append(errs, err)
			}
			slot.conn = nil
		}
		slot.mutex.Unlock()
	}
	return errors.Join(errs...)
}
