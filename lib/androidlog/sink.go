// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package androidlog

import (
	"encoding/binary"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultSocketPath is logd's write socket.
const DefaultSocketPath = "/dev/socket/logdw"

// Priority is an Android log priority.
type Priority uint8

const (
	Verbose Priority = 2
	Debug   Priority = 3
	Info    Priority = 4
	Warn    Priority = 5
	Error   Priority = 6
	Fatal   Priority = 7
)

const (
	mainBuffer = 0
	headerSize = 11

	// maxPayload is logd's LOGGER_ENTRY_MAX_PAYLOAD. Longer messages
	// are truncated.
	maxPayload = 4068
)

// Sink is a connected logd writer. Safe for concurrent use; each
// record is one datagram.
type Sink struct {
	conn *net.UnixConn
}

// Dial connects to the logd socket at path.
func Dial(path string) (*Sink, error) {
	conn, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		return nil, fmt.Errorf("connecting to logd at %s: %w", path, err)
	}
	return &Sink{conn: conn}, nil
}

// Write sends one record with the current time and thread id.
func (s *Sink) Write(priority Priority, tag, message string) error {
	record := encode(time.Now(), unix.Gettid(), priority, tag, message)
	if _, err := s.conn.Write(record); err != nil {
		return fmt.Errorf("writing log record: %w", err)
	}
	return nil
}

// Close closes the connection.
func (s *Sink) Close() error {
	return s.conn.Close()
}

func encode(now time.Time, tid int, priority Priority, tag, message string) []byte {
	tag = strings.ReplaceAll(tag, "\x00", "")
	message = strings.ReplaceAll(message, "\x00", "")
	if room := maxPayload - 3 - len(tag); len(message) > room {
		message = message[:max(room, 0)]
	}

	record := make([]byte, headerSize, headerSize+3+len(tag)+len(message))
	record[0] = mainBuffer
	binary.LittleEndian.PutUint16(record[1:3], uint16(tid))
	binary.LittleEndian.PutUint32(record[3:7], uint32(now.Unix()))
	binary.LittleEndian.PutUint32(record[7:11], uint32(now.Nanosecond()))
	record = append(record, byte(priority))
	record = append(record, tag...)
	record = append(record, 0)
	record = append(record, message...)
	record = append(record, 0)
	return record
}
