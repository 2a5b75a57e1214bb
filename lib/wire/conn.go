// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"math/bits"
	"net"
)

// WordSize is the byte width of a usize for this build.
const WordSize = bits.UintSize / 8

// MaxStringLength bounds the length prefix accepted by [Conn.ReadString].
// Module names, log tags and log messages are all far below this; a
// larger prefix means the peer is out of sync with the protocol.
const MaxStringLength = 1 << 20

var (
	// ErrUnknownAction is returned by [ParseAction] for a byte that does
	// not name an action.
	ErrUnknownAction = errors.New("wire: unknown action")

	// ErrStringTooLong is returned when a string length prefix exceeds
	// [MaxStringLength].
	ErrStringTooLong = errors.New("wire: string length exceeds limit")

	// ErrUsizeOverflow is returned when a value does not fit in the
	// connection's usize width.
	ErrUsizeOverflow = errors.New("wire: value overflows usize")
)

// Conn reads and writes protocol values on a Unix stream socket. It is
// not safe for concurrent use; each connection has exactly one
// goroutine driving it.
type Conn struct {
	conn     *net.UnixConn
	wordSize int
}

// NewConn wraps conn using this build's usize width.
func NewConn(conn *net.UnixConn) *Conn {
	return &Conn{conn: conn, wordSize: WordSize}
}

// NewConnWordSize wraps conn with an explicit usize width of 4 or 8
// bytes. Used by tests that exercise the other bitness's layout.
func NewConnWordSize(conn *net.UnixConn, wordSize int) *Conn {
	if wordSize != 4 && wordSize != 8 {
		panic(fmt.Sprintf("wire: unsupported word size %d", wordSize))
	}
	return &Conn{conn: conn, wordSize: wordSize}
}

// UnixConn returns the underlying socket.
func (c *Conn) UnixConn() *net.UnixConn {
	return c.conn
}

// Close closes the underlying socket.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// ReadUint8 reads one byte.
func (c *Conn) ReadUint8() (uint8, error) {
	var buffer [1]byte
	if _, err := io.ReadFull(c.conn, buffer[:]); err != nil {
		return 0, err
	}
	return buffer[0], nil
}

// WriteUint8 writes one byte.
func (c *Conn) WriteUint8(value uint8) error {
	_, err := c.conn.Write([]byte{value})
	return err
}

// ReadUint32 reads a native-endian 32-bit integer.
func (c *Conn) ReadUint32() (uint32, error) {
	var buffer [4]byte
	if _, err := io.ReadFull(c.conn, buffer[:]); err != nil {
		return 0, err
	}
	return binary.NativeEndian.Uint32(buffer[:]), nil
}

// WriteUint32 writes a native-endian 32-bit integer.
func (c *Conn) WriteUint32(value uint32) error {
	var buffer [4]byte
	binary.NativeEndian.PutUint32(buffer[:], value)
	_, err := c.conn.Write(buffer[:])
	return err
}

// ReadUsize reads a native-endian integer of the connection's word size.
func (c *Conn) ReadUsize() (uint64, error) {
	buffer := make([]byte, c.wordSize)
	if _, err := io.ReadFull(c.conn, buffer); err != nil {
		return 0, err
	}
	return c.decodeUsize(buffer), nil
}

// WriteUsize writes a native-endian integer of the connection's word
// size. Values wider than the word size fail with [ErrUsizeOverflow].
func (c *Conn) WriteUsize(value uint64) error {
	buffer, err := c.encodeUsize(value)
	if err != nil {
		return err
	}
	_, err = c.conn.Write(buffer)
	return err
}

// ReadString reads a usize length prefix followed by that many bytes.
func (c *Conn) ReadString() (string, error) {
	length, err := c.ReadUsize()
	if err != nil {
		return "", err
	}
	if length > MaxStringLength {
		return "", fmt.Errorf("%w: %d bytes", ErrStringTooLong, length)
	}
	if length == 0 {
		return "", nil
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(c.conn, data); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return "", err
	}
	return string(data), nil
}

// WriteString writes value as a usize length prefix followed by the raw
// bytes, in a single write.
func (c *Conn) WriteString(value string) error {
	header, err := c.encodeUsize(uint64(len(value)))
	if err != nil {
		return err
	}
	buffer := make([]byte, 0, len(header)+len(value))
	buffer = append(buffer, header...)
	buffer = append(buffer, value...)
	_, err = c.conn.Write(buffer)
	return err
}

func (c *Conn) decodeUsize(buffer []byte) uint64 {
	if c.wordSize == 4 {
		return uint64(binary.NativeEndian.Uint32(buffer))
	}
	return binary.NativeEndian.Uint64(buffer)
}

func (c *Conn) encodeUsize(value uint64) ([]byte, error) {
	buffer := make([]byte, c.wordSize)
	if c.wordSize == 4 {
		if value > math.MaxUint32 {
			return nil, fmt.Errorf("%w: %d", ErrUsizeOverflow, value)
		}
		binary.NativeEndian.PutUint32(buffer, uint32(value))
		return buffer, nil
	}
	binary.NativeEndian.PutUint64(buffer, value)
	return buffer, nil
}
