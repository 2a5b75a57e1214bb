// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/bureau-foundation/zygiskd/lib/netutil"
	"github.com/bureau-foundation/zygiskd/lib/wire"
)

// Server dispatches connections on the daemon socket.
type Server struct {
	state  *Context
	logger *slog.Logger
}

// NewServer returns a server reading state.
func NewServer(state *Context, logger *slog.Logger) *Server {
	return &Server{state: state, logger: logger}
}

// Serve accepts connections until ctx is cancelled, handling each on
// its own goroutine. The listener is closed on return. In-flight
// connections are not waited for.
func (s *Server) Serve(ctx context.Context, listener *net.UnixListener) error {
	defer listener.Close()

	// Unblock Accept when the context is cancelled.
	stop := context.AfterFunc(ctx, func() { listener.Close() })
	defer stop()

	s.logger.Info("handling zygote connections", "address", listener.Addr().String())

	for {
		conn, err := listener.AcceptUnix()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			// EMFILE and friends: the listener is still usable.
			s.logger.Error("accept failed", "error", err)
			continue
		}
		go s.handleConnection(conn)
	}
}

// handleConnection reads one action byte and runs its handler.
func (s *Server) handleConnection(unixConn *net.UnixConn) {
	conn := wire.NewConn(unixConn)
	defer conn.Close()

	raw, err := conn.ReadUint8()
	if err != nil {
		s.logFailure("reading action", err)
		return
	}
	action, err := wire.ParseAction(raw)
	if err != nil {
		s.logger.Warn("rejecting connection", "error", err, "action", raw)
		return
	}
	s.logger.Debug("daemon action", "action", action)

	if err := s.dispatch(action, conn); err != nil {
		s.logFailure(fmt.Sprintf("handling %s", action), err, "action", action)
	}
}

func (s *Server) logFailure(message string, err error, args ...any) {
	args = append(args, "error", err)
	if netutil.IsExpectedCloseError(err) {
		s.logger.Debug(message, args...)
		return
	}
	s.logger.Warn(message, args...)
}

func (s *Server) dispatch(action wire.Action, conn *wire.Conn) error {
	switch action {
	case wire.PingHeartbeat:
		return nil
	case wire.RequestLogcatFd:
		return s.forwardLogs(conn)
	case wire.ReadNativeBridge:
		return conn.WriteString(s.state.NativeBridge)
	case wire.GetProcessFlags:
		return s.processFlags(conn)
	case wire.ReadModules:
		return s.readModules(conn)
	case wire.RequestCompanionSocket:
		return s.requestCompanion(conn)
	case wire.GetModuleDir:
		return s.moduleDir(conn)
	default:
		return fmt.Errorf("%w: %d", wire.ErrUnknownAction, uint8(action))
	}
}
