// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// ErrNoDescriptor is returned by [Conn.RecvFile] when a message arrives
// without an SCM_RIGHTS control message.
var ErrNoDescriptor = errors.New("wire: message carried no descriptor")

// RawConner is anything that exposes its descriptor through
// syscall.RawConn: *os.File and every *net.UnixConn.
type RawConner interface {
	SyscallConn() (syscall.RawConn, error)
}

// SendFile transfers source's descriptor to the peer. The descriptor is
// borrowed for the duration of the call through RawConn.Control, so a
// concurrent Close on source cannot race the sendmsg. The caller keeps
// ownership of source.
func (c *Conn) SendFile(source RawConner) error {
	raw, err := source.SyscallConn()
	if err != nil {
		return fmt.Errorf("wire: obtaining raw descriptor: %w", err)
	}
	var sendErr error
	if err := raw.Control(func(fd uintptr) {
		sendErr = c.SendFD(int(fd))
	}); err != nil {
		return fmt.Errorf("wire: borrowing descriptor: %w", err)
	}
	return sendErr
}

// SendFD transfers fd to the peer as a single SCM_RIGHTS message
// attached to one zero byte. The caller keeps ownership of fd.
func (c *Conn) SendFD(fd int) error {
	rights := unix.UnixRights(fd)
	n, oobn, err := c.conn.WriteMsgUnix([]byte{0}, rights, nil)
	if err != nil {
		return fmt.Errorf("wire: sending descriptor: %w", err)
	}
	if n != 1 || oobn != len(rights) {
		return fmt.Errorf("wire: short descriptor write (%d data, %d control bytes)", n, oobn)
	}
	return nil
}

// RecvFile receives one descriptor sent with [Conn.SendFD] and returns
// it as an *os.File owned by the caller. Any extra descriptors in the
// same message are closed.
func (c *Conn) RecvFile(name string) (*os.File, error) {
	data := make([]byte, 1)
	oob := make([]byte, unix.CmsgSpace(4))
	n, oobn, _, _, err := c.conn.ReadMsgUnix(data, oob)
	if err != nil {
		return nil, fmt.Errorf("wire: receiving descriptor: %w", err)
	}
	if n == 0 && oobn == 0 {
		return nil, io.EOF
	}

	messages, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return nil, fmt.Errorf("wire: parsing control message: %w", err)
	}
	var descriptors []int
	for index := range messages {
		fds, err := unix.ParseUnixRights(&messages[index])
		if err != nil {
			continue
		}
		descriptors = append(descriptors, fds...)
	}
	if len(descriptors) == 0 {
		return nil, ErrNoDescriptor
	}
	for _, extra := range descriptors[1:] {
		unix.Close(extra)
	}
	return os.NewFile(uintptr(descriptors[0]), name), nil
}

// SocketPair creates a connected pair of Unix stream sockets. Both
// descriptors are close-on-exec; callers that hand one end to a child
// process do so through exec.Cmd.ExtraFiles, which clears the flag on
// the child's copy only.
func SocketPair() (*os.File, *os.File, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: socketpair: %w", err)
	}
	return os.NewFile(uintptr(fds[0]), "socketpair-0"), os.NewFile(uintptr(fds[1]), "socketpair-1"), nil
}

// FileConn converts a stream socket file into a *net.UnixConn. The file
// is closed on return; the connection owns a duplicate of the
// descriptor.
func FileConn(file *os.File) (*net.UnixConn, error) {
	defer file.Close()
	conn, err := net.FileConn(file)
	if err != nil {
		return nil, fmt.Errorf("wire: converting %s to connection: %w", file.Name(), err)
	}
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("wire: %s is not a unix socket", file.Name())
	}
	return unixConn, nil
}

// ConnPair returns both ends of a socket pair as connections.
func ConnPair() (*net.UnixConn, *net.UnixConn, error) {
	first, second, err := SocketPair()
	if err != nil {
		return nil, nil, err
	}
	left, err := FileConn(first)
	if err != nil {
		second.Close()
		return nil, nil, err
	}
	right, err := FileConn(second)
	if err != nil {
		left.Close()
		return nil, nil, err
	}
	return left, right, nil
}
